package main

import (
	"bufio"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	linuxproc "github.com/c9s/goprocinfo/linux"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// memoryFactor keeps a margin so the full physical memory is never committed.
const memoryFactor = 0.9

var numberRegexp = regexp.MustCompile(`\b\d+\b`)

// ParseMemTotal takes the first number on the MemTotal line (kB) and returns
// the usable megabytes.
func ParseMemTotal(r io.Reader) (int, error) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.Contains(line, "MemTotal") {
			continue
		}
		token := numberRegexp.FindString(line)
		if token == "" {
			continue
		}
		kb, err := strconv.ParseInt(token, 10, 64)
		if err != nil {
			return 0, errors.Wrapf(ErrUnparsableValue, "MemTotal %q", token)
		}
		return int(float64(kb/1024) * memoryFactor), nil
	}
	if err := scanner.Err(); err != nil {
		return 0, errors.Wrap(err, "reading memory info")
	}
	return 0, errors.Wrap(ErrMissingConfiguration, "can't get node memory")
}

func GetNodeMemory(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, errors.Wrapf(ErrMissingConfiguration, "can't get node memory: %v", err)
	}
	defer f.Close()

	mem, err := ParseMemTotal(f)
	if err != nil {
		return 0, errors.WithMessage(err, path)
	}
	return mem, nil
}

// hyperthreadingUnlikely reports whether cpus exceeds the logical CPUs the
// host exposes, which means the doubling in CPUsPerNode overshot.
func hyperthreadingUnlikely(info *linuxproc.CPUInfo, cpus int) bool {
	n := info.NumCPU()
	return n > 0 && cpus > n
}

func warnIfNoHyperthreading(path string, cpus int) {
	info, err := linuxproc.ReadCPUInfo(path)
	if err != nil {
		logger.WithError(err).Debugf("cannot read %s, skipping hyperthreading check", path)
		return
	}
	if hyperthreadingUnlikely(info, cpus) {
		logger.WithFields(log.Fields{
			"cpus":         cpus,
			"logical_cpus": info.NumCPU(),
			"cores":        info.NumCore(),
		}).Warn("cpus per node exceeds the logical cpus of this host")
	}
}
