package drivers

import (
	"bufio"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"sync"

	domainerrors "importcheck/internal/core/errors"
	"importcheck/internal/engine/parser"
	"importcheck/internal/engine/resolver"
	"importcheck/internal/shared/diag"
	"importcheck/internal/shared/util"
)

//go:embed python_helper.py
var helperScript string

type helperRequest struct {
	Path string `json:"path"`
	File string `json:"file"`
}

type helperResponse struct {
	Status string `json:"status"`
	Detail string `json:"detail"`
}

func (r helperResponse) result() resolver.ExternalResult {
	status := resolver.StatusOtherError
	switch r.Status {
	case "resolved":
		status = resolver.StatusResolved
	case "module_not_found":
		status = resolver.StatusModuleNotFound
	case "attribute_not_found":
		status = resolver.StatusAttributeNotFound
	}
	return resolver.ExternalResult{Status: status, Detail: r.Detail}
}

// RuntimeProvider asks a long-lived interpreter process whether a dotted
// path can be imported. One request is in flight at a time.
type RuntimeProvider struct {
	python  string
	limiter *util.Limiter
	sink    *diag.Sink

	mu     sync.Mutex
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
	starts int
}

func NewRuntimeProvider(python string, limiter *util.Limiter, sink *diag.Sink) *RuntimeProvider {
	if python == "" {
		python = "python3"
	}
	return &RuntimeProvider{python: python, limiter: limiter, sink: sink}
}

func (p *RuntimeProvider) Name() string { return KindRuntime }

func (p *RuntimeProvider) Validate(ctx context.Context, path parser.DottedPath, sourceFile string) (resolver.ExternalResult, error) {
	if path == "" {
		return resolver.ExternalResult{Status: resolver.StatusOtherError, Detail: resolver.EmptyImportPathMessage}, nil
	}
	if err := p.limiter.Wait(ctx, 1); err != nil {
		return resolver.ExternalResult{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	req := helperRequest{Path: path.String(), File: sourceFile}
	var lastErr error
	// A helper that died since the last call gets one restart.
	for attempt := 0; attempt < 2; attempt++ {
		if err := p.startLocked(); err != nil {
			return resolver.ExternalResult{}, err
		}
		resp, err := p.roundTripLocked(ctx, req)
		if err == nil {
			return resp.result(), nil
		}
		p.stopLocked()
		if ctx.Err() != nil {
			return resolver.ExternalResult{}, ctx.Err()
		}
		lastErr = err
		p.sink.Debug("python helper failed, restarting", "import", path.String(), "error", err)
	}
	err := domainerrors.Wrap(lastErr, domainerrors.CodeProvider, "python helper unavailable")
	err = domainerrors.AddContext(err, domainerrors.CtxProvider, KindRuntime)
	return resolver.ExternalResult{}, domainerrors.AddContext(err, domainerrors.CtxImport, path.String())
}

func (p *RuntimeProvider) startLocked() error {
	if p.cmd != nil {
		return nil
	}
	cmd := exec.Command(p.python, "-c", helperScript)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeProvider, "open helper stdin")
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeProvider, "open helper stdout")
	}
	if err := cmd.Start(); err != nil {
		return domainerrors.AddContext(
			domainerrors.Wrap(err, domainerrors.CodeProvider, "start python helper"),
			domainerrors.CtxProvider, p.python)
	}
	p.cmd = cmd
	p.stdin = stdin
	p.stdout = bufio.NewReader(stdout)
	p.starts++
	p.sink.Debug("python helper started", "python", p.python, "pid", cmd.Process.Pid)
	return nil
}

func (p *RuntimeProvider) roundTripLocked(ctx context.Context, req helperRequest) (helperResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return helperResponse{}, err
	}
	if _, err := p.stdin.Write(append(payload, '\n')); err != nil {
		return helperResponse{}, fmt.Errorf("write request: %w", err)
	}

	type lineResult struct {
		line []byte
		err  error
	}
	reader := p.stdout
	ch := make(chan lineResult, 1)
	go func() {
		line, err := reader.ReadBytes('\n')
		ch <- lineResult{line: line, err: err}
	}()

	select {
	case <-ctx.Done():
		return helperResponse{}, ctx.Err()
	case res := <-ch:
		if res.err != nil {
			return helperResponse{}, fmt.Errorf("read response: %w", res.err)
		}
		var resp helperResponse
		if err := json.Unmarshal(res.line, &resp); err != nil {
			return helperResponse{}, fmt.Errorf("decode response: %w", err)
		}
		return resp, nil
	}
}

func (p *RuntimeProvider) stopLocked() {
	if p.cmd == nil {
		return
	}
	_ = p.stdin.Close()
	if p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
	_ = p.cmd.Wait()
	p.cmd, p.stdin, p.stdout = nil, nil, nil
}

// Close stops the helper. The provider restarts it if used again.
func (p *RuntimeProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
	return nil
}
