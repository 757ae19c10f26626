// Package replysender drains the affective dispatcher's result queue and
// writes VAD reply datagrams back to the sensor endpoint's last-known
// source address for each sensor id. Grounded on the reference
// implementation's reply task (lookup last address, send UDP datagram,
// log-only when no address is known yet).
package replysender

import (
	"context"
	"net"

	"github.com/xpanvictor/vadbridge/internal/affective"
	"github.com/xpanvictor/vadbridge/internal/wire"
	"github.com/xpanvictor/vadbridge/pkg/Logger"
)

// AddressLookup resolves a sensor id to its last-known source address.
type AddressLookup interface {
	Lookup(sensorID uint32) (net.Addr, bool)
}

// Sender writes a datagram to dst.
type Sender interface {
	WriteTo(b []byte, dst net.Addr) (int, error)
}

// Results is the dispatcher's outbound result queue.
type Results interface {
	Results() <-chan affective.Result
}

// ReplySender routes dispatcher results to devices.
type ReplySender struct {
	results Results
	addrs   AddressLookup
	sender  Sender
	log     *Logger.Logger
}

// New constructs a ReplySender.
func New(results Results, addrs AddressLookup, sender Sender, log *Logger.Logger) *ReplySender {
	return &ReplySender{results: results, addrs: addrs, sender: sender, log: log}
}

// Run drains results until ctx is cancelled.
func (r *ReplySender) Run(ctx context.Context) {
	ch := r.results.Results()
	for {
		select {
		case <-ctx.Done():
			return
		case result, ok := <-ch:
			if !ok {
				return
			}
			r.handle(result)
		}
	}
}

func (r *ReplySender) handle(result affective.Result) {
	if result.Kind != wire.VadKindEmotional {
		// Audio-kind results are not replied to over the wire; they
		// are only logged.
		r.log.Debugw("audio vad result", "sensor_id", result.SensorID, "active", result.Active)
		return
	}

	dst, ok := r.addrs.Lookup(result.SensorID)
	if !ok {
		r.log.Debugw("no known address for sensor, dropping reply", "sensor_id", result.SensorID)
		return
	}

	frame := wire.BuildVadReply(wire.VadReply{
		SensorID:  result.SensorID,
		Seq:       result.Seq,
		Active:    result.Active,
		Kind:      result.Kind,
		Energy:    float32(result.Energy),
		Threshold: float32(result.Threshold),
		Valence:   result.Valence,
		Arousal:   result.Arousal,
		Dominance: result.Dominance,
	})
	if _, err := r.sender.WriteTo(frame, dst); err != nil {
		r.log.Warnw("failed to write vad reply", "sensor_id", result.SensorID, "err", err)
	}
}
