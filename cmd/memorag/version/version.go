// Package versioncmder provides the version command.
package versioncmder

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/memorag/pkg/utils"
)

type versionCommander struct {
	jsonOut bool
}

func NewVersionCmd() *cobra.Command {
	cmder := &versionCommander{}

	cmd := &cobra.Command{
		Use:   "version",
		Short: "displays version",
		Long:  "displays the version of this CLI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&cmder.jsonOut, "json", false, "Print build metadata as JSON")

	return cmd
}

func (c *versionCommander) run(out io.Writer) error {
	if c.jsonOut {
		return json.NewEncoder(out).Encode(map[string]string{
			"version":   utils.Version,
			"sha":       utils.Sha,
			"buildtime": utils.Buildtime,
		})
	}
	_, err := fmt.Fprintln(out, utils.VersionString())
	return err
}
