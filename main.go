package main

import (
	"fmt"
	"net"
	"os"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	flagConfigFile        string
	flagInventoryFile     string
	flagNodeList          string
	flagCPUsEnv           string
	flagMemInfo           string
	flagCPUInfo           string
	flagInventoryTemplate string
	flagMetricsTextfile   string
	flagLogLevel          string
	flagLogJSON           bool
	flagDryRun            bool
)

var logger = log.NewEntry(log.StandardLogger())

var rootCmd = &cobra.Command{
	Use:   "slurm-config-loader",
	Short: "load cluster config from the current slurm allocation",
	Long: "Discovers the server and client nodes of the running Slurm job together with their CPU and memory, " +
		"rewrites the matching keys of the cluster config and writes the provisioning inventory.",
	Example:       "slurm-config-loader --config config/config.yml --inventory ansible.inventory",
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVarP(&flagConfigFile, "config", "c", "config/config.yml", "cluster config file, read for disks and rewritten in place")
	flags.StringVarP(&flagInventoryFile, "inventory", "i", "ansible.inventory", "inventory file to write")
	flags.StringVar(&flagNodeList, "nodelist", os.Getenv("SLURM_JOB_NODELIST"), "node list passed to scontrol show hostnames")
	flags.StringVar(&flagCPUsEnv, "cpus-env", "SLURM_JOB_CPUS_PER_NODE", "environment variable holding the cpus per node")
	flags.StringVar(&flagMemInfo, "meminfo", "/proc/meminfo", "memory information source")
	flags.StringVar(&flagCPUInfo, "cpuinfo", "/proc/cpuinfo", "cpu information source, only used for a hyperthreading sanity check")
	flags.StringVar(&flagInventoryTemplate, "inventory-template", "", "text/template file rendering one inventory line per client node")
	flags.StringVar(&flagMetricsTextfile, "metrics-textfile", "", "also write the discovered profile as a prometheus textfile")
	flags.StringVar(&flagLogLevel, "log-level", "info", "log level")
	flags.BoolVar(&flagLogJSON, "log-json", false, "log in json")
	flags.BoolVar(&flagDryRun, "dry-run", false, "derive everything but do not write any file")
}

func configureLogging() error {
	level, err := log.ParseLevel(flagLogLevel)
	if err != nil {
		return errors.Wrap(err, "invalid --log-level")
	}
	log.SetLevel(level)
	log.SetOutput(os.Stderr)
	if flagLogJSON {
		log.SetFormatter(&log.JSONFormatter{})
	}
	logger = log.WithField("run", uuid.New().String())
	return nil
}

func run(cmd *cobra.Command, args []string) error {
	if err := configureLogging(); err != nil {
		return err
	}

	opts := LoadOptions{
		ConfigFile:        flagConfigFile,
		InventoryFile:     flagInventoryFile,
		NodeList:          flagNodeList,
		CPUsEnv:           flagCPUsEnv,
		MemInfo:           flagMemInfo,
		CPUInfo:           flagCPUInfo,
		InventoryTemplate: flagInventoryTemplate,
		MetricsTextfile:   flagMetricsTextfile,
		DryRun:            flagDryRun,
	}
	cpusValue, cpusSet := os.LookupEnv(flagCPUsEnv)
	return LoadClusterConfig(cmd.Context(), opts, execCommand, net.DefaultResolver, cpusValue, cpusSet, os.Stdout)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%+v\n", err)
		os.Exit(1)
	}
}
