// Command turtleshell partitions a shell body into turtle-shell cells and
// carves the faces that meet the pole axes at the layout angle.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/chazu/turtleshell/pkg/config"
	"github.com/chazu/turtleshell/pkg/logging"
	"github.com/chazu/turtleshell/pkg/turtle"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var errNoJob = errors.New("script declares no turtle-shell")

var (
	configPath string
	scriptPath string
	flags      config.Flags
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "turtleshell",
		Short:        "carve turtle-shell cells out of a shell body",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&flags.LogLevel, "log-level", "", "log level (debug, info, warn, error)")
	root.AddCommand(newRunCmd(), newPlanesCmd())
	return root
}

func addJobFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVarP(&configPath, "config", "c", "", "YAML job file")
	f.Float64Var(&flags.Polar, "polar", 0, "polar angle in degrees")
	f.Float64Var(&flags.Azimuthal, "azimuthal", 0, "azimuthal angle in degrees")
	f.Float64Var(&flags.PlaneAngle, "plane-angle", 0, "single plane angle in degrees (legacy layout)")
	f.Float64Var(&flags.CarveAngle, "carve-angle", 0, "face angle to carve, defaults to the layout angle")
	f.Float64Var(&flags.BigNumber, "big-number", 0, "sketch line half-length, defaults to twice the body extent")
	f.StringVar(&flags.Axes, "axes", "", `carve order, e.g. "xyz" or "z,x"`)
	f.StringVar(&flags.Cut, "cut", "", "diagonal cut mode: plane or sketch")
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "build the fixture body, carve it and print the report",
		Long: "Runs a job from a YAML file (--config), a script (--script) or flags alone.\n" +
			"Angle and carve flags override the job file; scripts carry their own parameters.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath != "" && scriptPath != "" {
				return errors.New("--config and --script are mutually exclusive")
			}
			var result RunResult
			if scriptPath != "" {
				if err := applyLogLevel(""); err != nil {
					return err
				}
				src, err := os.ReadFile(scriptPath)
				if err != nil {
					return fmt.Errorf("read script: %w", err)
				}
				result = NewApp(logging.NamedLogger("turtleshell")).Evaluate(string(src))
			} else {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				result = NewApp(logging.NamedLogger("turtleshell")).Run(cfg.Job(), cfg.BodySpec())
			}
			if err := writeYAML(cmd.OutOrStdout(), result); err != nil {
				return err
			}
			if !result.OK() {
				return errors.New("run failed")
			}
			return nil
		},
	}
	addJobFlags(cmd)
	cmd.Flags().StringVarP(&scriptPath, "script", "s", "", "job script")
	return cmd
}

// planeOutput is what the planes command prints.
type planeOutput struct {
	Strategy string               `yaml:"strategy"`
	Planes   []turtle.PlaneReport `yaml:"planes"`
}

func newPlanesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "planes",
		Short: "print the cutting plane normals for a layout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			job := cfg.Job()
			if err := job.Validate(); err != nil {
				return err
			}
			frame, err := job.Frame()
			if err != nil {
				return err
			}
			set, err := job.Strategy().Generate(frame)
			if err != nil {
				return err
			}
			out := planeOutput{Strategy: job.Strategy().String(), Planes: turtle.PlaneReports(set)}
			return writeYAML(cmd.OutOrStdout(), out)
		},
	}
	addJobFlags(cmd)
	return cmd
}

// loadConfig reads --config when given and applies the flag overrides.
func loadConfig() (config.Config, error) {
	var cfg config.Config
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return cfg, err
		}
	}
	if err := cfg.Resolve(flags); err != nil {
		return cfg, err
	}
	return cfg, applyLogLevel(cfg.LogLevel)
}

func applyLogLevel(fromFile string) error {
	level := flags.LogLevel
	if level == "" {
		level = fromFile
	}
	if level == "" {
		return nil
	}
	return logging.SetLevel(level)
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return enc.Close()
}
