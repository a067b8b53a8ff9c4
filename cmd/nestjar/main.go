// Command nestjar inspects self-contained executable archives: listing
// entries, streaming nested resources by composite jar URL, resolving
// resources over an inner classpath, and unpacking entries to disk.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/meigma/nestjar"
	"github.com/meigma/nestjar/classpath"
	"github.com/meigma/nestjar/jarurl"
)

var verbose bool

func logger() *slog.Logger {
	if !verbose {
		return nil
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func main() {
	root := &cobra.Command{
		Use:           "nestjar",
		Short:         "Inspect nested executable archives",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	root.AddCommand(listCmd(), catCmd(), resolveCmd(), unpackCmd())
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "nestjar:", err)
		os.Exit(1)
	}
}

func listCmd() *cobra.Command {
	var nested string
	cmd := &cobra.Command{
		Use:   "list <archive>",
		Short: "List archive entries in central directory order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := nestjar.Open(args[0], nestjar.WithLogger(logger()))
			if err != nil {
				return err
			}
			defer a.Close()
			if nested != "" {
				child, err := a.NestedByName(nested)
				if err != nil {
					return err
				}
				defer child.Close()
				a = child
			}
			for e := range a.Entries() {
				method := "stored"
				if e.Method == nestjar.MethodDeflated {
					method = "deflated"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%10d  %-8s  %s\n", e.Size, method, e.Name)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&nested, "nested", "", "descend into a nested archive first")
	return cmd
}

func catCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cat <jar-url>",
		Short: "Stream the entry addressed by a composite jar URL to stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jarurl.Register()
			res, err := jarurl.OpenURL(args[0])
			if err != nil {
				return err
			}
			defer res.Close()
			if res.Reader == nil {
				return fmt.Errorf("%s addresses an archive, not an entry", args[0])
			}
			_, err = io.Copy(cmd.OutOrStdout(), res.Reader)
			return err
		},
	}
}

func resolveCmd() *cobra.Command {
	var libPrefix, classesDir string
	cmd := &cobra.Command{
		Use:   "resolve <archive> <resource>",
		Short: "Resolve a resource over the archive's inner classpath",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := nestjar.Open(args[0], nestjar.WithLogger(logger()))
			if err != nil {
				return err
			}
			defer a.Close()
			search := func(e nestjar.Entry) bool {
				return e.Name == classesDir || (strings.HasPrefix(e.Name, libPrefix) && !e.Directory)
			}
			resolver, err := classpath.ForArchive(a, search, nil)
			if err != nil {
				return err
			}
			defer resolver.Close()
			url, ok := resolver.FindResource(args[1])
			if !ok {
				return fmt.Errorf("resource %q not found", args[1])
			}
			fmt.Fprintln(cmd.OutOrStdout(), url)
			return nil
		},
	}
	cmd.Flags().StringVar(&libPrefix, "lib", "lib/", "prefix of library entries")
	cmd.Flags().StringVar(&classesDir, "classes", "classes/", "name of the classes directory entry")
	return cmd
}

func unpackCmd() *cobra.Command {
	var prefix string
	cmd := &cobra.Command{
		Use:   "unpack <archive> <dest>",
		Short: "Extract entries to a directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := nestjar.Open(args[0], nestjar.WithLogger(logger()))
			if err != nil {
				return err
			}
			defer a.Close()
			var filter nestjar.Filter
			if prefix != "" {
				filter = func(e nestjar.Entry) bool { return strings.HasPrefix(e.Name, prefix) }
			}
			return a.Unpack(cmd.Context(), args[1], filter)
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "", "only extract entries under this prefix")
	return cmd
}
