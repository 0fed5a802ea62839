package cmd

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/crowdfund-network/crowdfund-engine/common"
	"github.com/crowdfund-network/crowdfund-engine/common/errs"
	"github.com/crowdfund-network/crowdfund-engine/core/constants"
	"github.com/crowdfund-network/crowdfund-engine/modules/crowdfund"
	"github.com/spf13/cobra"
)

var versions = map[string]string{
	"":                              constants.Version,
	common.ModuleCrowdfund.String(): crowdfund.Version,
}

type versionCmdOptions struct {
	Modules string
}

func NewVersionCommand() *cobra.Command {
	opts := &versionCmdOptions{}

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show crowdfund-engine version",
		RunE: func(cmd *cobra.Command, args []string) error {
			return versionHandler(opts, cmd, args)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.Modules, "module", "", `Show version of a specific module. E.g. "crowdfund"`)

	return cmd
}

func versionHandler(opts *versionCmdOptions, _ *cobra.Command, _ []string) error {
	version, ok := versions[opts.Modules]
	if !ok {
		return errors.Wrap(errs.Unsupported, "Invalid module name")
	}
	fmt.Println(version)
	return nil
}
