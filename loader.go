package main

import (
	"context"
	"io"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// LoadOptions are the paths and switches of one run.
type LoadOptions struct {
	ConfigFile        string
	InventoryFile     string
	NodeList          string
	CPUsEnv           string
	MemInfo           string
	CPUInfo           string
	InventoryTemplate string
	MetricsTextfile   string
	DryRun            bool
}

// LoadClusterConfig discovers the allocation and rewrites the config and
// inventory files. cpusValue/cpusSet carry the CPUs-per-node variable.
// Every derivation, including disk lookup and template parsing, finishes
// before the first file is written.
func LoadClusterConfig(ctx context.Context, opts LoadOptions, run CommandRunner, resolver Resolver, cpusValue string, cpusSet bool, stdout io.Writer) error {
	alloc, err := GetSlurmAllocation(ctx, run, resolver, opts.NodeList, stdout)
	if err != nil {
		return err
	}

	cpus, err := GetNodeCPUs(cpusValue, cpusSet)
	if err != nil {
		return errors.WithMessage(err, opts.CPUsEnv)
	}
	warnIfNoHyperthreading(opts.CPUInfo, cpus)

	memory, err := GetNodeMemory(opts.MemInfo)
	if err != nil {
		return err
	}
	logger.WithFields(log.Fields{"cpus": cpus, "memory_mb": memory}).Info("node resources derived")

	disks, err := GetDisksFromConfig(opts.ConfigFile, AssignDisks)
	if err != nil {
		return err
	}

	nodeWriter, err := NewNodeWriter(opts.InventoryTemplate)
	if err != nil {
		return err
	}

	if opts.DryRun {
		logger.Info("dry run, writing inventory to stdout only")
		return WriteInventory(stdout, alloc.Server, alloc.Clients, cpus, memory, disks, nodeWriter)
	}

	profile := ClusterProfile{
		ServerIP:    alloc.ServerIP,
		ClientNodes: len(alloc.Clients),
		CPUs:        cpus,
		Memory:      memory,
	}
	if err := UpdateConfigFile(opts.ConfigFile, profile); err != nil {
		return err
	}
	if err := UpdateInventoryFile(opts.InventoryFile, alloc.Server, alloc.Clients, cpus, memory, disks, nodeWriter); err != nil {
		return err
	}

	if opts.MetricsTextfile != "" {
		if err := WriteMetricsTextfile(opts.MetricsTextfile, alloc, cpus, memory); err != nil {
			return err
		}
	}
	return nil
}
