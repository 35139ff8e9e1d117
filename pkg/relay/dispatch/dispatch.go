// Package dispatch routes decoded inbound frames to a chain of handlers.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/linguacast/linguacast/pkg/relay/protocol"
	"github.com/linguacast/linguacast/pkg/relay/registry"
	"github.com/linguacast/linguacast/pkg/relay/relayerr"
)

// Handler is one link in the dispatch chain. Handle returns handled=false
// to decline a message it nominally accepts, passing it to the next link.
type Handler interface {
	CanHandle(msgType string) bool
	Handle(ctx context.Context, client *registry.Client, msg any) (handled bool, err error)
}

// BinaryHandler is implemented by handlers that also accept raw binary
// frames (speaker audio chunks arrive this way).
type BinaryHandler interface {
	HandleBinary(ctx context.Context, client *registry.Client, chunk []byte) (handled bool, err error)
}

// Dispatcher decodes envelopes and walks the handler chain in registration
// order. Handler errors become typed error replies on the sender's own
// connection; the connection stays open except after a panic.
type Dispatcher struct {
	handlers []Handler
	logger   *slog.Logger
}

func NewDispatcher(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{logger: logger}
}

// Register appends handlers to the chain. Order is authoritative: earlier
// handlers see every message first.
func (d *Dispatcher) Register(handlers ...Handler) {
	d.handlers = append(d.handlers, handlers...)
}

// Dispatch routes one text frame. Malformed frames and handler failures are
// answered with a typed error reply; a handler panic drops the connection
// and nothing else.
func (d *Dispatcher) Dispatch(ctx context.Context, client *registry.Client, raw []byte) {
	defer d.recoverPanic(client)

	typ, msg, err := protocol.Decode(raw)
	if err != nil {
		d.reply(client, protocol.NewErrorReply(err, typ))
		return
	}

	for _, h := range d.handlers {
		if !h.CanHandle(typ) {
			continue
		}
		handled, err := h.Handle(ctx, client, msg)
		if err != nil {
			d.reply(client, protocol.NewErrorReply(err, typ))
			return
		}
		if handled {
			return
		}
	}
	d.reply(client, protocol.NewErrorReply(relayerr.Malformed("no handler for message type", "type"), typ))
}

// DispatchBinary routes one binary frame through handlers that accept raw
// chunks.
func (d *Dispatcher) DispatchBinary(ctx context.Context, client *registry.Client, chunk []byte) {
	defer d.recoverPanic(client)

	for _, h := range d.handlers {
		bh, ok := h.(BinaryHandler)
		if !ok {
			continue
		}
		handled, err := bh.HandleBinary(ctx, client, chunk)
		if err != nil {
			d.reply(client, protocol.NewErrorReply(err, protocol.TypeAudio))
			return
		}
		if handled {
			return
		}
	}
	d.logger.Debug("binary frame ignored", "conn", client.ID(), "bytes", len(chunk))
}

func (d *Dispatcher) recoverPanic(client *registry.Client) {
	if v := recover(); v != nil {
		err := relayerr.Fatal(fmt.Errorf("handler panic: %v", v))
		d.logger.Error("handler panic, dropping connection", "conn", client.ID(), "err", err)
		client.Close()
	}
}

func (d *Dispatcher) reply(client *registry.Client, reply protocol.ErrorReply) {
	if err := client.SendPriorityJSON(reply); err != nil {
		d.logger.Warn("error reply dropped", "conn", client.ID(), "err", err)
	}
}
