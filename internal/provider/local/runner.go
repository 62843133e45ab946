package local

// #region imports
import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/GDogMcCoy/PanDerm-IOS-App/go-engine/internal/analysis"
	"github.com/GDogMcCoy/PanDerm-IOS-App/go-engine/internal/provider"
)

// #endregion

// #region wire

// Frames are a 4-byte big-endian length followed by a msgpack body.
const maxFrameSize = 32 << 20

const (
	opInfer  = "infer"
	opLoad   = "load"
	opUpdate = "update"
)

// runner error codes
const codeModelUnavailable = "model_unavailable"

type runnerRequest struct {
	ID    uint64 `msgpack:"id"`
	Op    string `msgpack:"op"`
	Image []byte `msgpack:"image,omitempty"`
	Path  string `msgpack:"path,omitempty"`
}

type runnerResponse struct {
	ID       uint64             `msgpack:"id"`
	Code     string             `msgpack:"code,omitempty"`
	Error    string             `msgpack:"error,omitempty"`
	Labels   map[string]float32 `msgpack:"labels,omitempty"`
	Risk     *float32           `msgpack:"risk,omitempty"` // nil = model has no risk head
	Version  string             `msgpack:"model_version,omitempty"`
	LabelSet []string           `msgpack:"label_set,omitempty"`
}

// #endregion

// #region runner-client

// RunnerInfo is the handshake payload after a load or update.
type RunnerInfo struct {
	Version string
	Labels  []string
}

// RunnerClient abstracts the on-device model runtime process.
type RunnerClient interface {
	Infer(ctx context.Context, image []byte) (analysis.Scores, error)
	Load(ctx context.Context, path string) (RunnerInfo, error)
	Update(ctx context.Context, path string) (RunnerInfo, error)
	Close() error
}

// #endregion

// #region socket-client

// SocketClient speaks the framed msgpack protocol to the runner over a
// Unix socket. One request is in flight at a time; the runner executes
// serially anyway.
type SocketClient struct {
	mu   sync.Mutex
	dial func() (net.Conn, error)
	conn net.Conn
	seq  uint64
}

// NewSocketClient connects lazily to the runner socket at path.
func NewSocketClient(path string) *SocketClient {
	return &SocketClient{
		dial: func() (net.Conn, error) {
			return net.DialTimeout("unix", path, 3*time.Second)
		},
	}
}

// NewSocketClientWithDial substitutes the transport, for tests.
func NewSocketClientWithDial(dial func() (net.Conn, error)) *SocketClient {
	return &SocketClient{dial: dial}
}

// Infer runs the active model over one encoded image.
func (c *SocketClient) Infer(ctx context.Context, image []byte) (analysis.Scores, error) {
	resp, err := c.call(ctx, runnerRequest{Op: opInfer, Image: image})
	if err != nil {
		return analysis.Scores{}, err
	}

	labels := make(map[analysis.Label]float32, len(resp.Labels))
	for name, conf := range resp.Labels {
		labels[analysis.Label(name)] = conf
	}
	risk := float32(-1)
	if resp.Risk != nil {
		risk = *resp.Risk
	}
	return analysis.Scores{
		Labels:       labels,
		RiskScore:    risk,
		ModelVersion: resp.Version,
	}, nil
}

// Load asks the runner to load the artifact at path from scratch.
func (c *SocketClient) Load(ctx context.Context, path string) (RunnerInfo, error) {
	resp, err := c.call(ctx, runnerRequest{Op: opLoad, Path: path})
	if err != nil {
		return RunnerInfo{}, err
	}
	return RunnerInfo{Version: resp.Version, Labels: resp.LabelSet}, nil
}

// Update asks the runner to swap to the replaced artifact at path.
func (c *SocketClient) Update(ctx context.Context, path string) (RunnerInfo, error) {
	resp, err := c.call(ctx, runnerRequest{Op: opUpdate, Path: path})
	if err != nil {
		return RunnerInfo{}, err
	}
	return RunnerInfo{Version: resp.Version, Labels: resp.LabelSet}, nil
}

// Close drops the connection. The next call redials.
func (c *SocketClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}

// #endregion

// #region call

func (c *SocketClient) call(ctx context.Context, req runnerRequest) (runnerResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		conn, err := c.dial()
		if err != nil {
			return runnerResponse{}, fmt.Errorf("%w: runner not reachable: %v", provider.ErrModelUnavailable, err)
		}
		c.conn = conn
	}
	conn := c.conn

	c.seq++
	req.ID = c.seq

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	} else {
		conn.SetDeadline(time.Time{})
	}
	// Cancellation unblocks the pending read by expiring the connection.
	stop := context.AfterFunc(ctx, func() { conn.SetDeadline(time.Now()) })
	defer stop()

	payload, err := msgpack.Marshal(req)
	if err != nil {
		return runnerResponse{}, fmt.Errorf("encode runner request: %w", err)
	}
	if err := writeFrame(conn, payload); err != nil {
		return runnerResponse{}, c.ioError(ctx, "write", err)
	}
	raw, err := readFrame(conn)
	if err != nil {
		return runnerResponse{}, c.ioError(ctx, "read", err)
	}

	var resp runnerResponse
	if err := msgpack.Unmarshal(raw, &resp); err != nil {
		c.dropLocked()
		return runnerResponse{}, fmt.Errorf("decode runner response: %w", err)
	}
	if resp.ID != req.ID {
		c.dropLocked()
		return runnerResponse{}, fmt.Errorf("%w: runner answered frame %d, expected %d", provider.ErrTransport, resp.ID, req.ID)
	}
	if resp.Error != "" {
		if resp.Code == codeModelUnavailable {
			return runnerResponse{}, fmt.Errorf("%w: %s", provider.ErrModelUnavailable, resp.Error)
		}
		return runnerResponse{}, fmt.Errorf("runner error: %s", resp.Error)
	}
	return resp, nil
}

// ioError maps an I/O failure to the right failure class: the caller's
// context wins over the raw socket error. The explicit deadline check
// covers the window where the connection deadline has fired but the
// context timer has not.
func (c *SocketClient) ioError(ctx context.Context, op string, err error) error {
	c.dropLocked()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("runner %s: %w", op, ctxErr)
	}
	if deadline, ok := ctx.Deadline(); ok && !time.Now().Before(deadline) {
		return fmt.Errorf("runner %s: %w", op, context.DeadlineExceeded)
	}
	return fmt.Errorf("%w: runner %s: %v", provider.ErrTransport, op, err)
}

func (c *SocketClient) dropLocked() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

// #endregion

// #region framing

func writeFrame(w io.Writer, payload []byte) error {
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(payload)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

func readFrame(r io.Reader) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if n > maxFrameSize {
		return nil, fmt.Errorf("frame of %d bytes exceeds limit", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// #endregion
