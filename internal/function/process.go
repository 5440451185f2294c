package function

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/daffinity/serverless-offline/internal/common/cnst"
	"github.com/daffinity/serverless-offline/pkg/trace"
	"github.com/daffinity/serverless-offline/pkg/utils"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ProcessHandler runs an external executable per invocation. The event is
// written to stdin as JSON and stdout becomes the result. A non-zero exit is
// a failure described by a {"errorMessage","errorType"} object on stdout,
// or by stderr.
//
// The process is not killed when the invocation times out.
type ProcessHandler struct {
	Path    string
	Dir     string
	Handler string
	logger  *zap.Logger
}

// NewProcessHandler creates a handler for the executable at path
func NewProcessHandler(path, dir, handler string, logger *zap.Logger) *ProcessHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProcessHandler{
		Path:    path,
		Dir:     dir,
		Handler: handler,
		logger:  logger.Named("function.process"),
	}
}

// Invoke starts the process synchronously, so it inherits the environment
// in effect at call time, and waits for it on a separate goroutine.
func (p *ProcessHandler) Invoke(ctx context.Context, event Event, lc *Context) {
	input, err := json.Marshal(event)
	if err != nil {
		lc.Fail(errors.Wrap(err, "marshal event"))
		return
	}

	cmd := exec.Command(p.Path)
	cmd.Dir = p.Dir
	cmd.Env = append(os.Environ(), utils.MapToEnvList(map[string]string{
		"AWS_LAMBDA_FUNCTION_NAME": lc.FunctionName,
		"AWS_REQUEST_ID":           lc.AwsRequestID,
		"_HANDLER":                 p.Handler,
		"OFFLINE_DEADLINE_MS":      strconv.FormatInt(lc.Deadline.UnixMilli(), 10),
	})...)
	cmd.Stdin = bytes.NewReader(input)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	scope := trace.Tracer(cnst.TraceFunction).Start(ctx, cnst.SpanProcess)
	scope.WithAttrs(
		attribute.String(cnst.AttrFunctionName, lc.FunctionName),
		attribute.String(cnst.AttrProcessPath, p.Path),
	)
	if err := cmd.Start(); err != nil {
		err = errors.Wrapf(err, "start %s", p.Path)
		scope.RecordError(err).End()
		lc.Fail(err)
		return
	}
	p.logger.Debug("process started",
		zap.String("path", p.Path),
		zap.Int("pid", cmd.Process.Pid),
		zap.String("request_id", lc.AwsRequestID))

	go func() {
		defer scope.End()
		waitErr := cmd.Wait()
		if stderr.Len() > 0 {
			p.logger.Debug("process stderr", zap.String("path", p.Path), zap.String("stderr", stderr.String()))
		}
		if waitErr != nil {
			err := processFailure(waitErr, stdout.Bytes(), stderr.Bytes())
			scope.RecordError(err)
			lc.Fail(err)
			return
		}
		lc.Succeed(parseOutput(stdout.Bytes()))
	}()
}

// parseOutput decodes stdout as JSON, falling back to the trimmed text
func parseOutput(out []byte) any {
	text := strings.TrimSpace(string(out))
	if text == "" {
		return nil
	}
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil || dec.More() {
		return text
	}
	return v
}

func processFailure(waitErr error, stdout, stderr []byte) error {
	if m, ok := parseOutput(stdout).(map[string]any); ok {
		if msg := utils.GetString(m, "errorMessage", ""); msg != "" {
			failure := &InvocationError{
				Message: msg,
				Type:    utils.GetString(m, "errorType", "Error"),
			}
			if trace, ok := m["stackTrace"].([]any); ok {
				for _, line := range trace {
					if s, ok := line.(string); ok {
						failure.Stack = append(failure.Stack, s)
					}
				}
			}
			return failure
		}
	}
	if msg := strings.TrimSpace(string(stderr)); msg != "" {
		return &InvocationError{Message: msg, Type: "Error"}
	}
	return errors.Wrap(waitErr, "process exited")
}
