package reconciler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kurtbuilds/cook/pkg/events"
	"github.com/kurtbuilds/cook/pkg/resource"
	"github.com/kurtbuilds/cook/pkg/rule"
	"github.com/kurtbuilds/cook/pkg/transport"
	"github.com/kurtbuilds/cook/pkg/transport/transporttest"
	"github.com/kurtbuilds/cook/pkg/types"
)

// aptMissing answers every apt list query with "not installed" and every
// other command with success.
func aptMissing(argv []string) (types.CommandResult, error) {
	return types.CommandResult{}, nil
}

func fakeConnector(fakes map[string]*transporttest.Fake) Connector {
	return func(_ context.Context, host string) (transport.Transport, error) {
		f, ok := fakes[host]
		if !ok {
			return nil, errors.New("unknown host")
		}
		return f, nil
	}
}

func jsonEvents(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var event map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &event), "line: %s", line)
		out = append(out, event)
	}
	return out
}

func TestEmptyStateIsNoOp(t *testing.T) {
	fake := transporttest.New("alice")
	var buf bytes.Buffer

	recon := New(rule.NewState(), Config{
		Method:  types.MethodSSH,
		Sink:    events.NewSink(&buf, types.FormatJSON),
		Connect: fakeConnector(map[string]*transporttest.Fake{"alice": fake}),
	})
	results := recon.Run(context.Background(), []string{"alice"})

	require.Len(t, results, 1)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, 0, results[0].Modifications)

	// The host is not touched, and exactly one summary is emitted.
	assert.Empty(t, fake.Calls())
	evs := jsonEvents(t, &buf)
	require.Len(t, evs, 1)
	assert.Equal(t, "alice", evs[0]["host"])
	assert.Equal(t, float64(0), evs[0]["modifications"])
	assert.True(t, fake.Closed())
}

func TestRulesApplyInOrder(t *testing.T) {
	state := rule.NewState()
	state.AddRule(&resource.PackageSpec{Name: "one"})
	state.AddRule(&resource.PackageSpec{Name: "two"})

	fake := transporttest.New("alice")
	fake.RunFunc = aptMissing
	var buf bytes.Buffer

	recon := New(state, Config{
		Method:  types.MethodSSH,
		Sink:    events.NewSink(&buf, types.FormatJSON),
		Connect: fakeConnector(map[string]*transporttest.Fake{"alice": fake}),
	})
	results := recon.Run(context.Background(), []string{"alice"})

	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	assert.Equal(t, 2, results[0].Modifications)

	// Rule one fully completes (check then apply) before rule two begins.
	var commands []string
	for _, call := range fake.Calls() {
		commands = append(commands, call.Command())
	}
	assert.Equal(t, []string{
		"apt -qq list one",
		"apt install -y one",
		"apt -qq list two",
		"apt install -y two",
	}, commands)
}

func TestEventApplyCorrespondence(t *testing.T) {
	state := rule.NewState()
	state.AddRule(&resource.PackageSpec{Name: "jq"})
	state.AddRule(&resource.PackageSpec{Name: "curl"})

	fake := transporttest.New("alice")
	fake.RunFunc = aptMissing
	var buf bytes.Buffer

	recon := New(state, Config{
		Method:  types.MethodSSH,
		Sink:    events.NewSink(&buf, types.FormatJSON),
		Connect: fakeConnector(map[string]*transporttest.Fake{"alice": fake}),
	})
	recon.Run(context.Background(), []string{"alice"})

	applied := 0
	for _, call := range fake.Calls() {
		if strings.HasPrefix(call.Command(), "apt install") {
			applied++
		}
	}
	emitted := 0
	for _, event := range jsonEvents(t, &buf) {
		if event["kind"] == "add_package" {
			emitted++
		}
	}
	assert.Equal(t, applied, emitted)
	assert.Equal(t, 2, emitted)
}

func TestHostIsolation(t *testing.T) {
	state := rule.NewState()
	state.AddRule(resource.FileWithContent("/etc/hello", []byte("hi\n")))

	good := transporttest.New("a")
	good.RunFunc = func(argv []string) (types.CommandResult, error) {
		if argv[0] == "sha256sum" {
			return types.CommandResult{ExitCode: 1}, nil
		}
		return types.CommandResult{}, nil
	}
	bad := transporttest.New("b")
	bad.RunFunc = good.RunFunc
	bad.PutErr = errors.New("sftp write failed")

	var buf bytes.Buffer
	recon := New(state, Config{
		Method:  types.MethodSSH,
		Sink:    events.NewSink(&buf, types.FormatJSON),
		Connect: fakeConnector(map[string]*transporttest.Fake{"a": good, "b": bad}),
	})
	results := recon.Run(context.Background(), []string{"a", "b"})

	require.Len(t, results, 2)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, 1, results[0].Modifications)
	require.Error(t, results[1].Err)
	assert.ErrorContains(t, results[1].Err, "sftp write failed")

	// Host a converged despite b's failure.
	_, ok := good.Written("/etc/hello")
	assert.True(t, ok)

	var aSummaries, bErrors int
	for _, event := range jsonEvents(t, &buf) {
		if event["host"] == "a" && event["completed"] == true {
			aSummaries++
		}
		if event["host"] == "b" && event["error"] != nil {
			bErrors++
		}
	}
	assert.Equal(t, 1, aSummaries)
	assert.Equal(t, 1, bErrors)
}

func TestConnectFailureIsHostScoped(t *testing.T) {
	state := rule.NewState()
	state.AddRule(&resource.PackageSpec{Name: "jq"})

	fake := transporttest.New("a")
	fake.RunFunc = aptMissing
	connect := func(_ context.Context, host string) (transport.Transport, error) {
		if host == "b" {
			return nil, errors.New("connection refused")
		}
		return fake, nil
	}

	var buf bytes.Buffer
	recon := New(state, Config{
		Method:  types.MethodSSH,
		Sink:    events.NewSink(&buf, types.FormatJSON),
		Connect: connect,
	})
	results := recon.Run(context.Background(), []string{"a", "b"})

	assert.NoError(t, results[0].Err)
	require.Error(t, results[1].Err)
	assert.True(t, types.Failed(results))
}

func TestMethodAgentRequiresAgent(t *testing.T) {
	fake := transporttest.New("alice") // no AgentPath

	var buf bytes.Buffer
	recon := New(rule.NewState(), Config{
		Method:  types.MethodAgent,
		Sink:    events.NewSink(&buf, types.FormatJSON),
		Connect: fakeConnector(map[string]*transporttest.Fake{"alice": fake}),
	})
	results := recon.Run(context.Background(), []string{"alice"})

	require.Error(t, results[0].Err)
	assert.ErrorContains(t, results[0].Err, "no agent binary")
}

func TestMethodAutoFallsBackToShell(t *testing.T) {
	state := rule.NewState()
	state.AddRule(&resource.PackageSpec{Name: "jq"})

	fake := transporttest.New("alice")
	fake.RunFunc = aptMissing

	var buf bytes.Buffer
	recon := New(state, Config{
		Method:  types.MethodAuto,
		Sink:    events.NewSink(&buf, types.FormatJSON),
		Connect: fakeConnector(map[string]*transporttest.Fake{"alice": fake}),
	})
	results := recon.Run(context.Background(), []string{"alice"})

	require.NoError(t, results[0].Err)
	assert.Equal(t, 1, results[0].Modifications)
}

func TestCheckOnlyAppliesNothing(t *testing.T) {
	state := rule.NewState()
	state.AddRule(&resource.PackageSpec{Name: "jq"})

	fake := transporttest.New("alice")
	fake.RunFunc = aptMissing

	var buf bytes.Buffer
	recon := New(state, Config{
		Method:    types.MethodSSH,
		Sink:      events.NewSink(&buf, types.FormatJSON),
		Connect:   fakeConnector(map[string]*transporttest.Fake{"alice": fake}),
		CheckOnly: true,
	})
	results := recon.Run(context.Background(), []string{"alice"})

	require.NoError(t, results[0].Err)
	assert.Equal(t, 1, results[0].Modifications)

	for _, call := range fake.Calls() {
		assert.NotContains(t, call.Command(), "install")
	}
}

func TestCancellationBetweenRules(t *testing.T) {
	state := rule.NewState()
	state.AddRule(&resource.PackageSpec{Name: "one"})
	state.AddRule(&resource.PackageSpec{Name: "two"})

	ctx, cancel := context.WithCancel(context.Background())
	fake := transporttest.New("alice")
	fake.RunFunc = func(argv []string) (types.CommandResult, error) {
		// Cancel while the first rule is in flight; the second rule must
		// not start.
		cancel()
		return types.CommandResult{}, nil
	}

	var buf bytes.Buffer
	recon := New(state, Config{
		Method:  types.MethodSSH,
		Sink:    events.NewSink(&buf, types.FormatJSON),
		Connect: fakeConnector(map[string]*transporttest.Fake{"alice": fake}),
	})
	results := recon.Run(ctx, []string{"alice"})

	require.Error(t, results[0].Err)
	for _, call := range fake.Calls() {
		assert.NotContains(t, call.Command(), "two")
	}
}
