package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"slidepress/internal/presentation"
	"slidepress/internal/templates"
	"slidepress/internal/varsub"
)

// inspectSession opens a session configured by the render flags of cmd.
func inspectSession(cmd *cobra.Command) (*session, error) {
	cfg, err := renderConfig(cmd)
	if err != nil {
		return nil, err
	}
	return openSession(cfg, true)
}

func newScheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule <in.xml>",
		Short: "Table of the time allotted to every slide",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := inspectSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			result, err := s.renderScratch(context.Background(), args[0])
			if err != nil {
				return err
			}

			total := result.Presentation.PresentationSeconds()
			if total == 0 {
				warnf("%s has no presentation-time, only ratios are meaningful", args[0])
			}
			PrintTableOfSchedule(cmd.OutOrStdout(), result.Schedule, total)
			return nil
		},
	}

	addRenderFlags(cmd.Flags())

	return cmd
}

func newTOCCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "toc <in.xml>",
		Short: "Table of contents of a presentation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := inspectSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			result, err := s.renderScratch(context.Background(), args[0])
			if err != nil {
				return err
			}

			frozen := result.Presentation.FrozenTOC()
			if frozen == nil || frozen.Len() == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "%s has no headings\n", args[0])
				return nil
			}
			PrintTableOfTOC(cmd.OutOrStdout(), frozen.Entries())
			return nil
		},
	}

	addRenderFlags(cmd.Flags())

	return cmd
}

func newMetadataCmd() *cobra.Command {
	desc := `Dump the metadata of a presentation

  Prints the <meta> block of the presentation after injected metadata has
  been merged in. Variables are shown evaluated unless --raw is given.`

	cmd := &cobra.Command{
		Use:   "metadata <in.xml>",
		Short: "Dump the metadata of a presentation",
		Long:  desc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := renderConfig(cmd)
			if err != nil {
				return err
			}
			params := cfg.RenderingParameters()

			l := presentation.NewLoader(params.IncludeDirs...)
			l.Injected = params.InjectedMetadata
			pres, err := l.Load(args[0])
			if err != nil {
				return errors.Wrapf(err, "loading %s", args[0])
			}

			meta := make(map[string]any, len(pres.Meta))
			for k, v := range pres.Meta {
				meta[k] = v
			}
			if vars, ok := meta["variables"].(map[string]any); ok && !MustGetBool(cmd.Flags(), "raw") {
				evaluated, err := varsub.New(vars).EvaluateAll()
				if err != nil {
					return errors.Wrap(err, "evaluating variables")
				}
				meta["variables"] = evaluated
			}

			out := cmd.OutOrStdout()
			switch format := MustGetString(cmd.Flags(), "format"); format {
			case "yaml":
				enc := yaml.NewEncoder(out)
				enc.SetIndent(2)
				if err := enc.Encode(meta); err != nil {
					return errors.Wrap(err, "encoding metadata")
				}
				return enc.Close()
			case "json":
				enc := json.NewEncoder(out)
				if MustGetBool(cmd.Flags(), "pretty") {
					enc.SetIndent("", "    ")
				}
				return enc.Encode(meta)
			default:
				return errors.Errorf("unknown output format %q (must be yaml or json)", format)
			}
		},
	}

	cmd.Flags().StringArrayP("include-dir", "I", nil, "additional include directory; can be given more than once")
	cmd.Flags().StringP("inject-metadata", "j", "", "JSON file whose keys override the metadata of the presentation")
	cmd.Flags().StringP("format", "F", "yaml", "output format (yaml or json)")
	cmd.Flags().BoolP("pretty", "P", false, "indent JSON output")
	cmd.Flags().Bool("raw", false, "print variables without evaluating them")

	return cmd
}

func newHashCmd() *cobra.Command {
	desc := `Hash a presentation and all of its dependencies

  The hash covers the XML sources, acronym databases and every file a hook
  references, so it changes whenever a render could produce different
  output.`

	cmd := &cobra.Command{
		Use:   "hash <in.xml>",
		Short: "Hash a presentation and all of its dependencies",
		Long:  desc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := renderConfig(cmd)
			if err != nil {
				return err
			}
			params := cfg.RenderingParameters()

			l := presentation.NewLoader(params.IncludeDirs...)
			pres, err := l.Load(args[0])
			if err != nil {
				return errors.Wrapf(err, "loading %s", args[0])
			}

			if MustGetBool(cmd.Flags(), "list") {
				deps, err := pres.Dependencies(l)
				if err != nil {
					return err
				}
				for _, dep := range deps {
					fmt.Fprintln(cmd.OutOrStdout(), dep)
				}
				return nil
			}

			hash, err := pres.Hash(l)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}

	cmd.Flags().StringArrayP("include-dir", "I", nil, "additional include directory; can be given more than once")
	cmd.Flags().BoolP("list", "l", false, "list the dependencies instead of hashing them")

	return cmd
}

func newStyleOptsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "styleopts <template style>",
		Short: "Show the options a template style supports",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := renderConfig(cmd)
			if err != nil {
				return err
			}

			layers, err := templates.DefaultLayers(cfg.RenderingParameters().ExtraTemplateDirs)
			if err != nil {
				return err
			}
			set, err := templates.Open(args[0], nil, layers...)
			if err != nil {
				return err
			}

			if len(set.Config.Parameters) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "Template style %s has no parameters.\n", args[0])
				return nil
			}
			PrintTableOfStyleParameters(cmd.OutOrStdout(), set.Config)
			return nil
		},
	}

	cmd.Flags().StringArray("template-dir", nil, "additional template directory; can be given more than once")

	return cmd
}
