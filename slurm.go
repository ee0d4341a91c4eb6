package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/alessio/shellescape"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

type SlurmAllocation struct {
	Server   string
	ServerIP string
	Clients  []string
}

// CommandRunner runs an external command and returns its stdout.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Resolver is satisfied by *net.Resolver.
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

func execCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = os.Stderr
	return cmd.Output()
}

func commandLine(name string, args ...string) string {
	quoted := make([]string, 0, len(args)+1)
	quoted = append(quoted, shellescape.Quote(name))
	for _, arg := range args {
		quoted = append(quoted, shellescape.Quote(arg))
	}
	return strings.Join(quoted, " ")
}

// ParseHostList returns the non-empty lines of scontrol output in the order
// they were printed.
func ParseHostList(out []byte) []string {
	hosts := make([]string, 0)
	for _, line := range strings.Split(string(out), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			hosts = append(hosts, line)
		}
	}
	return hosts
}

// GetSlurmAllocation asks scontrol for the hosts of the current job. The
// first host is the server, the rest are client nodes.
func GetSlurmAllocation(ctx context.Context, run CommandRunner, resolver Resolver, nodeList string, summary io.Writer) (*SlurmAllocation, error) {
	args := []string{"show", "hostnames"}
	if nodeList != "" {
		args = append(args, nodeList)
	}
	cmdLine := commandLine("scontrol", args...)
	logger.WithField("cmd", cmdLine).Debug("listing allocated hosts")

	out, err := run(ctx, "scontrol", args...)
	if err != nil {
		return nil, errors.Wrapf(ErrSchedulerUnavailable, "cannot call %s: %v", cmdLine, err)
	}
	hostNames := ParseHostList(out)
	if len(hostNames) == 0 {
		return nil, errors.Wrapf(ErrSchedulerUnavailable, "%s returned no hosts", cmdLine)
	}

	alloc := &SlurmAllocation{
		Server:  hostNames[0],
		Clients: hostNames[1:],
	}
	alloc.ServerIP, err = resolveAddress(ctx, resolver, alloc.Server)
	if err != nil {
		return nil, err
	}

	fmt.Fprintf(summary, "Server: %s\n", alloc.Server)
	fmt.Fprintf(summary, "Client nodes: %v\n", alloc.Clients)
	logger.WithFields(log.Fields{
		"server":    alloc.Server,
		"server_ip": alloc.ServerIP,
		"clients":   len(alloc.Clients),
	}).Info("slurm allocation discovered")

	return alloc, nil
}

// resolveAddress prefers an IPv4 address and falls back to whatever the
// resolver returned first.
func resolveAddress(ctx context.Context, resolver Resolver, host string) (string, error) {
	addrs, err := resolver.LookupHost(ctx, host)
	if err != nil {
		return "", errors.Wrapf(ErrAddressResolution, "%s: %v", host, err)
	}
	if len(addrs) == 0 {
		return "", errors.Wrapf(ErrAddressResolution, "%s: no addresses", host)
	}
	for _, addr := range addrs {
		if ip := net.ParseIP(addr); ip != nil && ip.To4() != nil {
			return addr, nil
		}
	}
	return addrs[0], nil
}

type CPUNotation int

const (
	// "64"
	CPUPlain CPUNotation = iota
	// "16(x2)": the count before the group, hyperthreads assumed
	CPUGrouped
)

type CPUSpec struct {
	Notation CPUNotation
	Count    int
}

var NodeCPUsGroupRegexp = regexp.MustCompile(`[\(\[].*?[\)\]]`)

// ParseCPUSpec reads a SLURM_JOB_CPUS_PER_NODE style value.
func ParseCPUSpec(value string) (CPUSpec, error) {
	if value == "" {
		return CPUSpec{}, errors.Wrap(ErrMissingConfiguration, "cpus per node is empty")
	}
	if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
		return CPUSpec{Notation: CPUPlain, Count: n}, nil
	}

	stripped := NodeCPUsGroupRegexp.ReplaceAllString(value, "")
	n, err := strconv.Atoi(strings.TrimSpace(stripped))
	if err != nil {
		return CPUSpec{}, errors.Wrapf(ErrUnparsableValue, "cannot interpret cpus per node %q", value)
	}
	return CPUSpec{Notation: CPUGrouped, Count: n}, nil
}

// CPUsPerNode doubles grouped counts. There is no hyperthreading detection
// behind this, see warnIfNoHyperthreading.
func (s CPUSpec) CPUsPerNode() int {
	switch s.Notation {
	case CPUGrouped:
		return s.Count * 2
	default:
		return s.Count
	}
}

// GetNodeCPUs derives the CPU count from the environment value; present
// reports whether the variable was set at all.
func GetNodeCPUs(value string, present bool) (int, error) {
	if !present {
		return 0, errors.Wrap(ErrMissingConfiguration, "cpus per node variable is not set")
	}
	parsed, err := ParseCPUSpec(value)
	if err != nil {
		return 0, err
	}
	return parsed.CPUsPerNode(), nil
}
