package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ketabi/ketabi/internal/epub"
	"github.com/ketabi/ketabi/internal/export"
)

func newReadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "read <file.ketabi>",
		Short: "Print the JSON content of a document file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := readCLIOptions(cmd)
			if err != nil {
				return err
			}
			pretty, _ := cmd.Flags().GetBool("pretty")

			raw, err := newCommands(opts).ReadFile(args[0])
			if err != nil {
				return err
			}

			out := []byte(raw)
			if pretty {
				var buf bytes.Buffer
				if err := json.Indent(&buf, raw, "", "  "); err != nil {
					return fmt.Errorf("failed to format JSON: %w", err)
				}
				out = buf.Bytes()
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\n", out)
			return err
		},
	}
	cmd.Flags().Bool("pretty", false, "Indent the JSON output")
	return cmd
}

func newSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync <file.ketabi>",
		Short: "Write JSON from --input or stdin to a document file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := readCLIOptions(cmd)
			if err != nil {
				return err
			}
			input, _ := cmd.Flags().GetString("input")

			var data []byte
			if input == "" || input == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(input)
			}
			if err != nil {
				return fmt.Errorf("failed to read input: %w", err)
			}
			if !json.Valid(data) {
				return errors.New("input is not valid JSON")
			}

			if err := newCommands(opts).Sync(json.RawMessage(data), args[0]); err != nil {
				return err
			}
			opts.Logger.Info("document saved", "path", args[0])
			return nil
		},
	}
	cmd.Flags().StringP("input", "i", "", "JSON input file (default: stdin)")
	return cmd
}

func newEpubCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "epub <document>",
		Short: "Export a document as EPUB",
		Long: `Export a document as EPUB.

The document is either a JSON file or a document file in the store format,
holding {"meta": {...}, "pages": [...]}. A relative meta.cover path is
resolved against the document's directory.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := readCLIOptions(cmd)
			if err != nil {
				return err
			}
			inputPath := args[0]
			outputPath, _ := cmd.Flags().GetString("output")
			if outputPath == "" {
				outputPath = defaultOutputPath(inputPath, "epub")
			}

			commands := newCommands(opts)

			var data []byte
			if filepath.Ext(inputPath) == opts.Config.Store.Extension {
				data, err = commands.ReadFile(inputPath)
			} else {
				data, err = os.ReadFile(inputPath)
			}
			if err != nil {
				return err
			}

			data, err = resolveCover(data, filepath.Dir(inputPath))
			if err != nil {
				return err
			}

			opts.Logger.Info("exporting", "input", inputPath, "output", outputPath)
			written, err := commands.GenerateEpub(string(data), outputPath)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), written)
			return err
		},
	}
	cmd.Flags().StringP("output", "o", "", "Output file path (default: input with .epub extension)")
	return cmd
}

// resolveCover rewrites a relative meta.cover so it is relative to baseDir.
// Documents without a cover, or ones that do not parse, pass through unchanged.
func resolveCover(data []byte, baseDir string) ([]byte, error) {
	doc, err := export.ParseDocument(data)
	if err != nil || doc.Meta.Cover == "" || filepath.IsAbs(doc.Meta.Cover) {
		return data, nil
	}
	doc.Meta.Cover = filepath.Join(baseDir, doc.Meta.Cover)
	out, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	return out, nil
}

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <book.epub>",
		Short: "Print the metadata and table of contents of an EPUB",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := readCLIOptions(cmd)
			if err != nil {
				return err
			}

			r, err := epub.Open(args[0])
			if err != nil {
				return err
			}
			defer r.Close()

			opf, err := r.Package()
			if err != nil {
				return err
			}
			return printBook(cmd.OutOrStdout(), r, opf, opts)
		},
	}
}

func printBook(w io.Writer, r *epub.Reader, opf *epub.OPF, opts *cliOptions) error {
	md := opf.Metadata
	var sb strings.Builder
	field := func(name, value string) {
		if value != "" {
			fmt.Fprintf(&sb, "%-12s %s\n", name+":", value)
		}
	}

	field("Title", md.Title)
	for _, c := range md.Creators {
		field("Creator", c.Name)
	}
	field("Language", md.Language)
	field("Identifier", md.Identifier)
	field("Publisher", md.Publisher)
	field("Date", md.Date)
	field("Description", md.Description)
	field("Subjects", strings.Join(md.Subjects, ", "))
	field("Modified", md.Modified)
	field("Generator", md.Generator)
	field("Version", opf.Version)
	if cover := opf.DetectCover(); cover != nil {
		field("Cover", fmt.Sprintf("%s (%s)", cover.Href, cover.Method))
	}

	nav, err := r.Navigation(opf)
	switch {
	case errors.Is(err, epub.ErrNavNotFound):
	case err != nil:
		return err
	default:
		sb.WriteString("\nContents:\n")
		for _, e := range nav {
			fmt.Fprintf(&sb, "  %s%s  %s\n", strings.Repeat("  ", e.Depth), e.Label, e.Path)
		}
	}

	sb.WriteString("\nReading order:\n")
	for i, item := range opf.Spine {
		mi, ok := opf.Manifest[item.IDRef]
		if !ok {
			continue
		}
		title := ""
		if data, err := r.ReadFile(mi.Href); err == nil {
			if page, err := epub.LoadContent(mi.Href, data); err == nil {
				title = page.Title
			}
		} else {
			opts.Logger.Debug("spine item unreadable", "href", mi.Href, "error", err)
		}
		fmt.Fprintf(&sb, "  %2d. %s  %s\n", i+1, title, mi.Href)
	}

	_, err = io.WriteString(w, sb.String())
	return err
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := readCLIOptions(cmd)
			if err != nil {
				return err
			}
			data, err := opts.Config.TOML()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.ConfigPath != "" {
				fmt.Fprintf(out, "# loaded from %s\n", opts.ConfigPath)
			} else {
				fmt.Fprintln(out, "# defaults and environment")
			}
			_, err = out.Write(data)
			return err
		},
	}
}
