package main

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// DiskLayout maps a disk class ("hdd", "ssd") to the paths assigned to every
// client node.
type DiskLayout map[string][]string

// DiskLayoutBuilder turns per-node disk counts and path lists into a layout.
type DiskLayoutBuilder func(hddCount int, hddPaths []string, ssdCount int, ssdPaths []string) (DiskLayout, error)

type diskConfig struct {
	HDDPerNode *int    `yaml:"hdd_disks_per_client_node"`
	HDDPaths   *string `yaml:"hdd_disks_path_list"`
	SSDPerNode *int    `yaml:"ssd_disks_per_client_node"`
	SSDPaths   *string `yaml:"ssd_disks_path_list"`
}

func (c *diskConfig) validate() error {
	if c.HDDPerNode == nil {
		return errors.Wrap(ErrConfigFieldMissing, "hdd_disks_per_client_node")
	}
	if c.HDDPaths == nil {
		return errors.Wrap(ErrConfigFieldMissing, "hdd_disks_path_list")
	}
	if c.SSDPerNode == nil {
		return errors.Wrap(ErrConfigFieldMissing, "ssd_disks_per_client_node")
	}
	if c.SSDPaths == nil {
		return errors.Wrap(ErrConfigFieldMissing, "ssd_disks_path_list")
	}
	return nil
}

// GetDisksFromConfig reads the disk fields of the cluster config and hands
// them to build. Path lists are split on commas and not trimmed.
func GetDisksFromConfig(path string, build DiskLayoutBuilder) (DiskLayout, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read configuration file %s", path)
	}

	config := diskConfig{}
	if err := yaml.Unmarshal(content, &config); err != nil {
		return nil, errors.Wrapf(ErrUnparsableValue, "%s: %v", path, err)
	}
	if err := config.validate(); err != nil {
		return nil, errors.WithMessage(err, path)
	}

	return build(
		*config.HDDPerNode, strings.Split(*config.HDDPaths, ","),
		*config.SSDPerNode, strings.Split(*config.SSDPaths, ","),
	)
}

// AssignDisks gives every client node the first count paths of each class.
func AssignDisks(hddCount int, hddPaths []string, ssdCount int, ssdPaths []string) (DiskLayout, error) {
	hdd, err := pickDisks("hdd", hddCount, hddPaths)
	if err != nil {
		return nil, err
	}
	ssd, err := pickDisks("ssd", ssdCount, ssdPaths)
	if err != nil {
		return nil, err
	}
	return DiskLayout{"hdd": hdd, "ssd": ssd}, nil
}

func pickDisks(class string, count int, paths []string) ([]string, error) {
	if count < 0 {
		return nil, errors.Wrapf(ErrUnparsableValue, "negative %s disk count %d", class, count)
	}

	picked := make([]string, 0, count)
	for _, p := range paths {
		if len(picked) == count {
			break
		}
		if p != "" {
			picked = append(picked, p)
		}
	}
	if len(picked) < count {
		logger.WithFields(log.Fields{
			"class":     class,
			"requested": count,
			"available": len(picked),
		}).Warn("fewer disk paths than disks per node")
	}
	return picked, nil
}
