/*
FogPlace
Component placement and traffic routing over fog infrastructures.
*/
package uds

import (
	"encoding/json"
	"net"
	"os"
	"sync"
	"time"

	"github.com/a-liut/fogplace/internal/model"
	"github.com/a-liut/fogplace/pkg/config"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultAcceptTimeout = 5 * time.Second

	// Time a connection waits for the reply to its request
	replyTimeout = 30 * time.Second
)

// A Reply is the answer sent back for a request.
type Reply struct {
	Accepted bool        `json:"accepted"`
	ID       string      `json:"id,omitempty"`
	Result   interface{} `json:"result,omitempty"`
	Error    string      `json:"error,omitempty"`
}

// A Request is an application received on the socket. The sender waits for Reply.
type Request struct {
	Application *model.Application

	reply chan *Reply
}

// Reply sends v back to the sender as JSON. Only the first reply is sent.
func (r *Request) Reply(v *Reply) {
	select {
	case r.reply <- v:
	default:
	}
}

// The UDSocketInterface reads placement requests from a unix socket.
type UDSocketInterface struct {
	path          string
	acceptTimeout time.Duration

	listener *net.UnixListener

	// Data channels
	data   chan *Request
	errors chan error

	// Stop channels
	quit chan struct{}
	done chan struct{}
}

// NewUDSSocketInterface returns a new UDSocketInterface instance
func NewUDSSocketInterface(cfg config.UDSConfig) *UDSocketInterface {
	timeout := cfg.AcceptTimeout
	if timeout <= 0 {
		timeout = DefaultAcceptTimeout
	}
	return &UDSocketInterface{
		path:          cfg.Path,
		acceptTimeout: timeout,
		quit:          make(chan struct{}),
		done:          make(chan struct{}),
		data:          make(chan *Request, 1),
		errors:        make(chan error, 1),
	}
}

// Start listens on the socket path, replacing any stale socket, and accepts
// connections until Stop is called.
func (i *UDSocketInterface) Start() error {
	addr, err := net.ResolveUnixAddr("unix", i.path)
	if err != nil {
		return errors.Wrapf(err, "cannot resolve %s", i.path)
	}
	if err := os.RemoveAll(i.path); err != nil {
		return errors.Wrapf(err, "cannot remove %s", i.path)
	}

	i.listener, err = net.ListenUnix("unix", addr)
	if err != nil {
		return errors.Wrap(err, "listen error")
	}

	log.WithField("path", i.path).Info("UDSocketInterface started")
	go i.serve()

	return nil
}

func (i *UDSocketInterface) serve() {
	defer close(i.done)
	defer i.listener.Close()

	var handlers sync.WaitGroup
	for {
		select {
		case <-i.quit:
			handlers.Wait()
			return
		default:
		}

		if err := i.listener.SetDeadline(time.Now().Add(i.acceptTimeout)); err != nil {
			i.report(errors.Wrap(err, "cannot set accept deadline"))
			handlers.Wait()
			return
		}

		conn, err := i.listener.AcceptUnix()
		if err != nil {
			if opErr, ok := err.(*net.OpError); ok && opErr.Timeout() {
				continue
			}
			i.report(errors.Wrap(err, "failed to accept connection"))
			handlers.Wait()
			return
		}

		handlers.Add(1)
		go func() {
			defer handlers.Done()
			i.handle(conn)
		}()
	}
}

func (i *UDSocketInterface) handle(conn *net.UnixConn) {
	defer conn.Close()

	app := &model.Application{}
	if err := json.NewDecoder(conn).Decode(app); err != nil {
		err = errors.Wrap(err, "cannot decode request")
		i.report(err)
		i.write(conn, &Reply{Error: err.Error()})
		return
	}

	req := &Request{Application: app, reply: make(chan *Reply, 1)}
	select {
	case i.data <- req:
	case <-i.quit:
		return
	}

	select {
	case v := <-req.reply:
		i.write(conn, v)
	case <-time.After(replyTimeout):
		log.WithField("application", app.ID).Warn("No reply for socket request")
	case <-i.quit:
	}
}

func (i *UDSocketInterface) write(conn *net.UnixConn, v *Reply) {
	if err := json.NewEncoder(conn).Encode(v); err != nil {
		log.WithError(err).Warn("Cannot write socket reply")
	}
}

func (i *UDSocketInterface) report(err error) {
	log.WithError(err).Warn("UDSocketInterface error")
	select {
	case i.errors <- err:
	default:
	}
}

// Stop closes the socket once the running handlers are done, then closes Data.
func (i *UDSocketInterface) Stop() {
	log.Debug("Calling UDSocketInterface stop")
	close(i.quit)

	<-i.done
	close(i.data)

	log.Info("UDSocketInterface stopped")
}

// Data returns the channel of the received requests.
func (i *UDSocketInterface) Data() <-chan *Request {
	return i.data
}

// Errors returns the channel of the socket errors.
func (i *UDSocketInterface) Errors() <-chan error {
	return i.errors
}

// Submit sends app to the socket at path and waits for the reply.
func Submit(path string, app *model.Application, timeout time.Duration) (*Reply, error) {
	conn, err := net.DialTimeout("unix", path, timeout)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot connect to %s", path)
	}
	defer conn.Close()

	if timeout > 0 {
		if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
			return nil, err
		}
	}
	if err := json.NewEncoder(conn).Encode(app); err != nil {
		return nil, errors.Wrap(err, "cannot send application")
	}
	reply := &Reply{}
	if err := json.NewDecoder(conn).Decode(reply); err != nil {
		return nil, errors.Wrap(err, "cannot read reply")
	}
	return reply, nil
}
