// Package inspectcmder provides the inspect command, which reports the
// metadata of the artifacts in a memory directory without loading any model.
package inspectcmder

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/memorag/pkg/artifact"
	"github.com/papercomputeco/memorag/pkg/cliui"
	"github.com/papercomputeco/memorag/pkg/config"
	"github.com/papercomputeco/memorag/pkg/errdefs"
)

type inspectCommander struct {
	jsonOut bool
}

var inspectFlags = []string{config.FlagMemoryDir}

// Report describes one memory directory.
type Report struct {
	Dir     string    `json:"dir"`
	Memory  *FileInfo `json:"memory,omitempty"`
	Index   *FileInfo `json:"index,omitempty"`
	Matched bool      `json:"digests_match"`
}

// FileInfo is the metadata of one artifact.
type FileInfo struct {
	artifact.Meta
	BodyBytes int64 `json:"body_bytes"`
}

const inspectLongDesc string = `Inspect the artifacts in a memory directory.

Verifies memory.bin and index.bin (magic, version and checksum) and prints
their metadata: corpus digest, models, ratio, sizes and passage counts. No
model is loaded. A missing index.bin is reported but is not an error, since
memory-only queries do not need it.

Examples:
  memorag inspect
  memorag inspect --memory-dir ./book-memory --json`

const inspectShortDesc string = "Show artifact metadata"

func NewInspectCmd() *cobra.Command {
	cmder := &inspectCommander{}

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: inspectShortDesc,
		Long:  inspectLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Resolve(cmd, inspectFlags)
			if err != nil {
				return err
			}
			return cmder.run(cmd.OutOrStdout(), cfg.Memory.Dir)
		},
	}

	cmd.Flags().BoolVar(&cmder.jsonOut, "json", false, "Print the report as JSON")
	config.AddFlags(cmd, config.Flags, inspectFlags)

	return cmd
}

// Inspect builds the report for dir. The memory artifact is required.
func Inspect(dir string) (*Report, error) {
	r := &Report{Dir: dir}

	meta, size, err := artifact.ReadMeta(artifact.MemoryPath(dir), artifact.KindMemory)
	if err != nil {
		return nil, err
	}
	r.Memory = &FileInfo{Meta: meta, BodyBytes: size}

	meta, size, err = artifact.ReadMeta(artifact.IndexPath(dir), artifact.KindIndex)
	switch {
	case err == nil:
		r.Index = &FileInfo{Meta: meta, BodyBytes: size}
		r.Matched = r.Index.CorpusDigest == r.Memory.CorpusDigest
	case errors.Is(err, errdefs.ErrMissingArtifact):
	default:
		return nil, err
	}

	return r, nil
}

func (c *inspectCommander) run(out io.Writer, dir string) error {
	r, err := Inspect(dir)
	if err != nil {
		return err
	}

	if c.jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}

	const width = 14
	fmt.Fprintf(out, "\n  %s %s\n\n", cliui.HeadingStyle.Render("Memory directory"), cliui.DimStyle.Render(dir))

	m := r.Memory
	fmt.Fprintf(out, "  %s\n", cliui.KeyStyle.Render(artifact.MemoryFile))
	cliui.KeyValue(out, width, "Corpus digest", m.CorpusDigest)
	cliui.KeyValue(out, width, "Model", m.Model)
	cliui.KeyValue(out, width, "Ratio", strconv.Itoa(m.Ratio))
	cliui.KeyValue(out, width, "Raw chars", strconv.Itoa(m.RawLength))
	cliui.KeyValue(out, width, "Memory bytes", strconv.FormatInt(m.BodyBytes, 10))
	cliui.KeyValue(out, width, "Created", m.CreatedAt.Local().Format(time.DateTime))
	fmt.Fprintln(out)

	fmt.Fprintf(out, "  %s\n", cliui.KeyStyle.Render(artifact.IndexFile))
	if r.Index == nil {
		fmt.Fprintf(out, "  %s\n\n", cliui.DimStyle.Render("not found; only memory-only queries will work"))
		return nil
	}
	ix := r.Index
	cliui.KeyValue(out, width, "Corpus digest", ix.CorpusDigest)
	cliui.KeyValue(out, width, "Model", ix.Model)
	cliui.KeyValue(out, width, "Dimensions", strconv.Itoa(ix.Dimensions))
	cliui.KeyValue(out, width, "Passages", strconv.Itoa(ix.Count))
	if ix.Skipped > 0 {
		cliui.KeyValue(out, width, "Skipped", strconv.Itoa(ix.Skipped))
	}
	cliui.KeyValue(out, width, "Created", ix.CreatedAt.Local().Format(time.DateTime))
	fmt.Fprintln(out)

	if r.Matched {
		fmt.Fprintf(out, "  %s memory and index were built from the same corpus\n\n", cliui.SuccessMark)
	} else {
		fmt.Fprintf(out, "  %s memory and index were built from different corpora; run memorize again\n\n", cliui.FailMark)
	}
	return nil
}
