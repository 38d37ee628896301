package main

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/artpar/convoy/internal/core/build"
	"github.com/artpar/convoy/internal/core/deployment"
	"github.com/artpar/convoy/internal/shell/reconcile"
)

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "convoy",
		Short:         "Deploy Docker containers to Marathon",
		Long:          `convoy reads a manifest of builds and deployments and reconciles each deployment against its Marathon scheduler.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.PersistentFlags().StringVar(&configPath, "config", "", "settings file (yaml, toml or json)")
	root.PersistentFlags().StringP("file", "f", "convoy.yaml", "path to the deployment manifest")
	root.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	load := newLoader(&configPath, stdout, stderr)
	root.AddCommand(
		newDeployCmd(load),
		newListCmd(load),
		newImageCmd(load),
		newVersionCmd(),
	)
	return root
}

// =============================================================================
// deploy
// =============================================================================

func newDeployCmd(load loader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deploy [DEPLOYMENT_NAME]",
		Short: "Run all deployments or only DEPLOYMENT_NAME",
		Long: `Deploys the containers declared in the manifest to Marathon. An app that is
already running gets a warm deploy honouring inherit/override modes; an app
that is not gets a cold deploy. Each deploy is polled until Marathon reports
no deployment affecting the app.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := load(cmd)
			if err != nil {
				return err
			}

			targets := a.registry.Deployments()
			if len(args) == 1 {
				d, err := a.registry.Deployment(args[0])
				if err != nil {
					a.logger.Error("Could not locate a deployment in the manifest", "deployment", args[0])
					return err
				}
				targets = []deployment.Deployment{d}
			}

			engine, recorder := a.newEngine()
			for _, d := range targets {
				a.logger.Info("Beginning deployment", "deployment", d.Name, "marathon_url", d.MarathonURL)
			}
			outcomes, deployErr := engine.PerformAll(cmd.Context(), targets, a.cfg.Parallel)

			for _, o := range outcomes {
				if o != nil {
					printOutcome(a.stdout, o)
				}
			}

			if recorder != nil {
				if err := recorder.WriteTextfile(a.cfg.Metrics.File); err != nil {
					a.logger.Warn("failed to write metrics", "file", a.cfg.Metrics.File, "error", err)
				}
			}
			return deployErr
		},
	}
	cmd.Flags().Int("parallel", 1, "number of deployments to run at once")
	cmd.Flags().String("metrics-file", "", "write Prometheus metrics to this textfile")
	return cmd
}

func printOutcome(w io.Writer, o *reconcile.Outcome) {
	fmt.Fprintf(w, "%-26s: %s (%s, %d polls, %s)\n", o.Deployment, o.State, o.Mode, o.Polls, o.Elapsed.Round(time.Millisecond))
}

// =============================================================================
// list
// =============================================================================

func newListCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show the builds and deployments declared in the manifest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := load(cmd)
			if err != nil {
				return err
			}

			fmt.Fprintln(a.stdout, "Builds:")
			for _, b := range a.registry.Builds() {
				writeBuild(a.stdout, b)
			}
			fmt.Fprintln(a.stdout, "Deployments:")
			for _, d := range a.registry.Deployments() {
				writeDeployment(a.stdout, d)
			}
			return nil
		},
	}
}

func writeBuild(w io.Writer, b build.Build) {
	fmt.Fprintf(w, "  Build name: %s\n", b.Name)
	fields := map[string]string{"registry": b.Registry, "version": b.Version}
	for _, key := range []string{"registry", "version"} {
		if fields[key] != "" {
			fmt.Fprintf(w, "    %-10s: %s\n", key, fields[key])
		}
	}
}

func writeDeployment(w io.Writer, d deployment.Deployment) {
	fmt.Fprintf(w, "  Deployment name: %s\n", d.Name)

	props := append(append([]deployment.Property{}, deployment.LockedProperties...), deployment.PropagatableProperties...)
	sort.Slice(props, func(i, j int) bool { return props[i] < props[j] })

	for _, p := range props {
		if p == deployment.PropName || !d.IsSet(p) {
			continue
		}
		value := fmt.Sprint(d.Value(p))
		if mode := d.Mode(p); mode != deployment.ModeUnset {
			value += fmt.Sprintf(" (%s)", mode)
		}
		fmt.Fprintf(w, "    %-26s: %s\n", p, value)
	}
}

// =============================================================================
// image
// =============================================================================

func newImageCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "image [BUILD_NAME]",
		Short: "Print the final image name of every build or only BUILD_NAME",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := load(cmd)
			if err != nil {
				return err
			}

			builds := a.registry.Builds()
			if len(args) == 1 {
				b, err := a.registry.Build(args[0])
				if err != nil {
					a.logger.Error("Could not locate a build in the manifest", "build", args[0])
					return err
				}
				builds = []build.Build{b}
			}

			for _, b := range builds {
				image, err := a.resolver.ImageName(cmd.Context(), b)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.stdout, "%-26s: %s\n", b.Name, image)
			}
			return nil
		},
	}
}

// =============================================================================
// version
// =============================================================================

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the convoy version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "convoy %s (built %s)\n", Version, BuildTime)
			return nil
		},
	}
}
