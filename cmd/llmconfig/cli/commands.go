package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/r9s-ai/gin-llmconfig/internal/config"
	"github.com/r9s-ai/gin-llmconfig/internal/server"
	"github.com/r9s-ai/gin-llmconfig/internal/version"
	"github.com/r9s-ai/gin-llmconfig/pkg/llmconfig"
)

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(strings.TrimSpace(path))
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the demo host application with " + llmconfig.ConfigPath + " enabled",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			return server.Run(strings.TrimSpace(path))
		},
	}
}

func newRoutesCmd() *cobra.Command {
	var plain bool
	cmd := &cobra.Command{
		Use:   "routes",
		Short: "Print the route table shown to the model",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			routes := server.DemoRoutes(cfg).ListRoutes()
			out := cmd.OutOrStdout()
			if plain {
				fmt.Fprintln(out, llmconfig.FormatRoutes(routes))
				return nil
			}
			fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("%d routes", len(routes))))
			for _, r := range routes {
				line := methodStyle.Render(r.Method) + " " + r.Path
				if len(r.Params) > 0 {
					line += " " + paramStyle.Render("("+strings.Join(r.Params, ", ")+")")
				}
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "print exactly the text substituted for {{routes}}")
	return cmd
}

func newPromptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prompt <input>",
		Short: "Render the prompt for an input without calling the provider",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			tmpl, err := cfg.PromptTemplate()
			if err != nil {
				return err
			}
			if tmpl == "" {
				tmpl = llmconfig.DefaultPromptTemplate
			}
			routes := server.DemoRoutes(cfg).ListRoutes()
			fmt.Fprint(cmd.OutOrStdout(), llmconfig.BuildPrompt(tmpl, routes, strings.Join(args, " ")))
			return nil
		},
	}
}

func newAskCmd() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "ask <input>",
		Short: "Call the provider once and print the generated config",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			h, err := server.BuildHandler(cfg, nil)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
			res := h.Generate(ctx, strings.Join(args, " "), server.DemoRoutes(cfg))

			out := cmd.OutOrStdout()
			printStatus(out, res.Status)
			b, err := res.JSON()
			if err != nil {
				return err
			}
			var pretty bytes.Buffer
			if err := json.Indent(&pretty, b, "", "  "); err != nil {
				return err
			}
			fmt.Fprintln(out, pretty.String())
			if res.Status != 200 {
				return fmt.Errorf("generation failed: %s", res.Outcome)
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "give up on the provider after this long (0 disables)")
	return cmd
}

func newVersionCmd() *cobra.Command {
	var short bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			info := version.Get()
			if short {
				fmt.Fprintln(cmd.OutOrStdout(), info.Short())
				return
			}
			fmt.Fprintln(cmd.OutOrStdout(), info.String())
		},
	}
	cmd.Flags().BoolVar(&short, "short", false, "print only the version")
	return cmd
}
