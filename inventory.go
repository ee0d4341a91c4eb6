package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"text/template"

	"github.com/pkg/errors"
)

// InventoryNode is what gets listed for one client node.
type InventoryNode struct {
	Host       string
	CPUs       int
	Memory     int
	Disks      DiskLayout
	Containers []string
}

type NodeWriter interface {
	WriteNode(w io.Writer, node InventoryNode) error
}

type templateNodeWriter struct {
	tpl *template.Template
}

func (t *templateNodeWriter) WriteNode(w io.Writer, node InventoryNode) error {
	if err := t.tpl.Execute(w, node); err != nil {
		return errors.Wrapf(err, "error executing inventory template for %s", node.Host)
	}
	return nil
}

// NewNodeWriter compiles the per-node template; an empty path selects
// DefaultNodeTemplate.
func NewNodeWriter(path string) (NodeWriter, error) {
	src := DefaultNodeTemplate
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "unable to read inventory template %s", path)
		}
		src = string(data)
	}
	tpl, err := ParseTpl(src)
	if err != nil {
		return nil, errors.Wrap(err, "unable to parse inventory template")
	}
	return &templateNodeWriter{tpl: tpl}, nil
}

// WriteInventory writes the server section and one listing per client node,
// in order.
func WriteInventory(w io.Writer, server string, clients []string, cpus, memory int, disks DiskLayout, nw NodeWriter) error {
	if _, err := fmt.Fprintf(w, "[server]\n%s\n[nodes]\n\n", server); err != nil {
		return err
	}
	for _, host := range clients {
		node := InventoryNode{
			Host:       host,
			CPUs:       cpus,
			Memory:     memory,
			Disks:      disks,
			Containers: []string{},
		}
		if err := nw.WriteNode(w, node); err != nil {
			return err
		}
	}
	return nil
}

// UpdateInventoryFile truncates path and writes the inventory into it.
func UpdateInventoryFile(path, server string, clients []string, cpus, memory int, disks DiskLayout, nw NodeWriter) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "unable to create inventory file %s", path)
	}
	defer f.Close()

	buf := bufio.NewWriter(f)
	if err := WriteInventory(buf, server, clients, cpus, memory, disks, nw); err != nil {
		return errors.WithMessage(err, path)
	}
	if err := buf.Flush(); err != nil {
		return errors.Wrapf(err, "unable to write inventory file %s", path)
	}
	if err := f.Close(); err != nil {
		return errors.Wrapf(err, "unable to write inventory file %s", path)
	}
	logger.WithField("path", path).Infof("inventory written with %d nodes", len(clients))
	return nil
}
