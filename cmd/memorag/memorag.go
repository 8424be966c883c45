// Package memoragcmder is the root memorag command.
package memoragcmder

import (
	"github.com/spf13/cobra"

	askcmder "github.com/papercomputeco/memorag/cmd/memorag/ask"
	chatcmder "github.com/papercomputeco/memorag/cmd/memorag/chat"
	configcmder "github.com/papercomputeco/memorag/cmd/memorag/config"
	historycmder "github.com/papercomputeco/memorag/cmd/memorag/history"
	initcmder "github.com/papercomputeco/memorag/cmd/memorag/init"
	inspectcmder "github.com/papercomputeco/memorag/cmd/memorag/inspect"
	memorizecmder "github.com/papercomputeco/memorag/cmd/memorag/memorize"
	querycmder "github.com/papercomputeco/memorag/cmd/memorag/query"
	servecmder "github.com/papercomputeco/memorag/cmd/memorag/serve"
	synccmder "github.com/papercomputeco/memorag/cmd/memorag/sync"
	versioncmder "github.com/papercomputeco/memorag/cmd/memorag/version"
	"github.com/papercomputeco/memorag/pkg/config"
)

const memoragLongDesc string = `MemoRAG answers questions over a corpus by pairing a compressed global
memory with dense retrieval.

Build the memory once, then query it:
  memorag memorize --corpus docs.jsonl   Build memory.bin and index.bin
  memorag ask "Who is the CEO?"          Answer one question
  memorag query --queries qa.jsonl       Answer a file of questions
  memorag chat                           Ask questions interactively
  memorag serve                          Run the HTTP API and MCP server`

const memoragShortDesc string = "MemoRAG - memory-augmented retrieval"

func NewMemoragCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "memorag",
		Short:         memoragShortDesc,
		Long:          memoragLongDesc,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String(config.FlagConfigDir, "", "Override path to .memorag/ config directory")

	cmd.AddCommand(memorizecmder.NewMemorizeCmd())
	cmd.AddCommand(askcmder.NewAskCmd())
	cmd.AddCommand(querycmder.NewQueryCmd())
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(inspectcmder.NewInspectCmd())
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(historycmder.NewHistoryCmd())
	cmd.AddCommand(synccmder.NewPushCmd())
	cmd.AddCommand(synccmder.NewPullCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
