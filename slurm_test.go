package main

import (
	"bytes"
	"context"
	"fmt"
	"reflect"
	"testing"

	"github.com/pkg/errors"
)

type mockResolver struct {
	addrs map[string][]string
}

func (r *mockResolver) LookupHost(ctx context.Context, host string) ([]string, error) {
	addrs, ok := r.addrs[host]
	if !ok {
		return nil, fmt.Errorf("no such host %s", host)
	}
	return addrs, nil
}

func stubRunner(out string, err error, calls *[]string) CommandRunner {
	return func(ctx context.Context, name string, args ...string) ([]byte, error) {
		if calls != nil {
			*calls = append(*calls, commandLine(name, args...))
		}
		return []byte(out), err
	}
}

func Test_GetSlurmAllocation_FirstHostIsServer(t *testing.T) {
	resolver := &mockResolver{map[string][]string{"srv1": {"10.0.0.1"}}}
	var summary bytes.Buffer

	alloc, err := GetSlurmAllocation(context.Background(), stubRunner("srv1\nn1\nn2\nn3\n", nil, nil), resolver, "", &summary)
	if err != nil {
		t.Fatalf("unexpected error: %+v", err)
	}

	expected := &SlurmAllocation{
		Server:   "srv1",
		ServerIP: "10.0.0.1",
		Clients:  []string{"n1", "n2", "n3"},
	}
	if !reflect.DeepEqual(alloc, expected) {
		t.Errorf("unexpected result: got %+v, want %+v", alloc, expected)
	}

	expectedSummary := "Server: srv1\nClient nodes: [n1 n2 n3]\n"
	if summary.String() != expectedSummary {
		t.Errorf("unexpected summary: got %q, want %q", summary.String(), expectedSummary)
	}
}

func Test_GetSlurmAllocation_SingleHost(t *testing.T) {
	resolver := &mockResolver{map[string][]string{"srv1": {"10.0.0.1"}}}

	alloc, err := GetSlurmAllocation(context.Background(), stubRunner("srv1\n", nil, nil), resolver, "", &bytes.Buffer{})
	if err != nil {
		t.Fatalf("unexpected error: %+v", err)
	}
	if alloc.Server != "srv1" || len(alloc.Clients) != 0 {
		t.Errorf("unexpected result: got %+v", alloc)
	}
}

func Test_GetSlurmAllocation_PassesNodeList(t *testing.T) {
	resolver := &mockResolver{map[string][]string{"srv1": {"10.0.0.1"}}}
	var calls []string

	_, err := GetSlurmAllocation(context.Background(), stubRunner("srv1\n", nil, &calls), resolver, "node[01-04]", &bytes.Buffer{})
	if err != nil {
		t.Fatalf("unexpected error: %+v", err)
	}

	expected := []string{"scontrol show hostnames 'node[01-04]'"}
	if !reflect.DeepEqual(calls, expected) {
		t.Errorf("unexpected calls: got %q, want %q", calls, expected)
	}
}

func Test_GetSlurmAllocation_SchedulerUnavailable(t *testing.T) {
	resolver := &mockResolver{}
	cases := []CommandRunner{
		stubRunner("", fmt.Errorf("exec: \"scontrol\": executable file not found in $PATH"), nil),
		stubRunner("", nil, nil),
		stubRunner("\n\n", nil, nil),
	}

	for i, runner := range cases {
		_, err := GetSlurmAllocation(context.Background(), runner, resolver, "", &bytes.Buffer{})
		if !errors.Is(err, ErrSchedulerUnavailable) {
			t.Errorf("case %d: unexpected error: got %v, want %v", i, err, ErrSchedulerUnavailable)
		}
	}
}

func Test_GetSlurmAllocation_AddressResolutionError(t *testing.T) {
	resolver := &mockResolver{map[string][]string{"empty": {}}}

	for _, server := range []string{"unknown", "empty"} {
		_, err := GetSlurmAllocation(context.Background(), stubRunner(server+"\nn1\n", nil, nil), resolver, "", &bytes.Buffer{})
		if !errors.Is(err, ErrAddressResolution) {
			t.Errorf("%s: unexpected error: got %v, want %v", server, err, ErrAddressResolution)
		}
	}
}

func Test_resolveAddress_PrefersIPv4(t *testing.T) {
	resolver := &mockResolver{map[string][]string{
		"dual": {"fe80::1", "192.168.1.5"},
		"v6":   {"fe80::1"},
	}}

	cases := map[string]string{
		"dual": "192.168.1.5",
		"v6":   "fe80::1",
	}
	for host, expected := range cases {
		actual, err := resolveAddress(context.Background(), resolver, host)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if actual != expected {
			t.Errorf("%s: got %q, want %q", host, actual, expected)
		}
	}
}

func Test_ParseHostList_KeepsOrder(t *testing.T) {
	actual := ParseHostList([]byte("c3\r\n\nc1\n  c2  \n"))
	expected := []string{"c3", "c1", "c2"}

	if !reflect.DeepEqual(actual, expected) {
		t.Errorf("unexpected result: got %q, want %q", actual, expected)
	}
}

func Test_ParseCPUSpec(t *testing.T) {
	cases := []struct {
		value    string
		expected CPUSpec
		cpus     int
	}{
		{"64", CPUSpec{CPUPlain, 64}, 64},
		{"16(x2)", CPUSpec{CPUGrouped, 16}, 32},
		{"8[x4]", CPUSpec{CPUGrouped, 8}, 16},
		{" 12 ", CPUSpec{CPUPlain, 12}, 12},
	}

	for _, c := range cases {
		actual, err := ParseCPUSpec(c.value)
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", c.value, err)
		}
		if actual != c.expected {
			t.Errorf("%q: got %+v, want %+v", c.value, actual, c.expected)
		}
		if actual.CPUsPerNode() != c.cpus {
			t.Errorf("%q: got %d cpus, want %d", c.value, actual.CPUsPerNode(), c.cpus)
		}
	}
}

func Test_GetNodeCPUs_rejectsBadInput(t *testing.T) {
	cases := []struct {
		value    string
		present  bool
		expected error
	}{
		{"", false, ErrMissingConfiguration},
		{"", true, ErrMissingConfiguration},
		{"abc", true, ErrUnparsableValue},
		{"16(x2),8", true, ErrUnparsableValue},
	}

	for _, c := range cases {
		actual, err := GetNodeCPUs(c.value, c.present)
		if !errors.Is(err, c.expected) {
			t.Errorf("%q: unexpected result: got %d, %v, want %v", c.value, actual, err, c.expected)
		}
	}
}
