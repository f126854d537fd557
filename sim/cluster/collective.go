// Package cluster provides a zmq-backed implementation of sim.Distributed
// for multi-rank runs. Rank 0 binds a router socket; every other rank dials
// in with a dealer socket carrying its rank as socket identity. Collectives
// are star-shaped: peers send their contribution to the root, the root
// combines contributions in rank order and broadcasts the result.
//
// All ranks must call the collective operations in the same order; the
// protocol carries an operation tag so a misordered call fails loudly
// instead of silently combining unrelated payloads.
package cluster

import (
	"fmt"
	"math"
	"time"

	zmq "github.com/pebbe/zmq4"
	"github.com/sirupsen/logrus"
	"github.com/sugawarayuuta/sonnet"

	"github.com/spikesim/spikesim/sim"
)

const (
	opSpikes = "spikes"
	opLabels = "labels"
	opMin    = "min"
)

// envelope is the wire format of one collective contribution or response.
type envelope struct {
	Rank   int              `json:"rank"`
	Op     string           `json:"op"`
	Spikes []sim.Spike      `json:"spikes,omitempty"`
	Labels []sim.CellLabels `json:"labels,omitempty"`
	Value  sim.TimeType     `json:"value"`
}

// Collective implements sim.Distributed over zmq.
type Collective struct {
	rank int
	size int

	ctx    *zmq.Context
	socket *zmq.Socket

	// peer socket identities in rank order, learned by the root from the
	// first collective round.
	peers map[int]string
}

func rankIdentity(rank int) string {
	return fmt.Sprintf("rank-%d", rank)
}

// Dial joins the collective as the given rank out of size ranks. rootAddr is
// the host:port the root listens on; rank 0 binds it, every other rank
// connects to it. timeout bounds every blocking receive; zero or negative
// waits forever.
func Dial(rank, size int, rootAddr string, timeout time.Duration) (*Collective, error) {
	if size <= 0 || rank < 0 || rank >= size {
		return nil, fmt.Errorf("rank %d out of range for size %d", rank, size)
	}
	ctx, err := zmq.NewContext()
	if err != nil {
		return nil, fmt.Errorf("zmq context: %w", err)
	}
	c := &Collective{rank: rank, size: size, ctx: ctx, peers: make(map[int]string)}

	if rank == 0 {
		sock, err := ctx.NewSocket(zmq.ROUTER)
		if err != nil {
			ctx.Term()
			return nil, fmt.Errorf("router socket: %w", err)
		}
		if err := sock.Bind(fmt.Sprintf("tcp://%s", rootAddr)); err != nil {
			sock.Close()
			ctx.Term()
			return nil, fmt.Errorf("bind %s: %w", rootAddr, err)
		}
		c.socket = sock
	} else {
		sock, err := ctx.NewSocket(zmq.DEALER)
		if err != nil {
			ctx.Term()
			return nil, fmt.Errorf("dealer socket: %w", err)
		}
		if err := sock.SetIdentity(rankIdentity(rank)); err != nil {
			sock.Close()
			ctx.Term()
			return nil, fmt.Errorf("set identity: %w", err)
		}
		if err := sock.Connect(fmt.Sprintf("tcp://%s", rootAddr)); err != nil {
			sock.Close()
			ctx.Term()
			return nil, fmt.Errorf("connect %s: %w", rootAddr, err)
		}
		c.socket = sock
	}
	if timeout > 0 {
		c.socket.SetRcvtimeo(timeout)
	}
	logrus.Infof("cluster: rank %d/%d up at %s", rank, size, rootAddr)
	return c, nil
}

// Close tears down the socket and context.
func (c *Collective) Close() {
	c.socket.Close()
	c.ctx.Term()
}

func (c *Collective) Rank() int { return c.rank }

func (c *Collective) Size() int { return c.size }

// exchange runs one star-shaped collective round: the root gathers one
// envelope from every peer, combine folds them into the response in rank
// order, and the response is broadcast back.
func (c *Collective) exchange(req envelope, combine func(resp *envelope, contrib envelope)) (envelope, error) {
	if c.size == 1 {
		resp := envelope{Rank: 0, Op: req.Op}
		combine(&resp, req)
		return resp, nil
	}

	data, err := sonnet.Marshal(req)
	if err != nil {
		return envelope{}, fmt.Errorf("marshal %s contribution: %w", req.Op, err)
	}

	if c.rank != 0 {
		if _, err := c.socket.SendBytes(data, 0); err != nil {
			return envelope{}, fmt.Errorf("send %s contribution: %w", req.Op, err)
		}
		frames, err := c.socket.RecvMessageBytes(0)
		if err != nil {
			return envelope{}, fmt.Errorf("recv %s response: %w", req.Op, err)
		}
		var resp envelope
		if err := sonnet.Unmarshal(frames[len(frames)-1], &resp); err != nil {
			return envelope{}, fmt.Errorf("decode %s response: %w", req.Op, err)
		}
		if resp.Op != req.Op {
			return envelope{}, fmt.Errorf("collective order mismatch: sent %q, root answered %q", req.Op, resp.Op)
		}
		return resp, nil
	}

	contribs := make(map[int]envelope, c.size)
	contribs[0] = req
	for len(contribs) < c.size {
		frames, err := c.socket.RecvMessageBytes(0)
		if err != nil {
			return envelope{}, fmt.Errorf("recv %s contribution: %w", req.Op, err)
		}
		if len(frames) < 2 {
			return envelope{}, fmt.Errorf("malformed %s contribution: %d frames", req.Op, len(frames))
		}
		var contrib envelope
		if err := sonnet.Unmarshal(frames[len(frames)-1], &contrib); err != nil {
			return envelope{}, fmt.Errorf("decode %s contribution: %w", req.Op, err)
		}
		if contrib.Op != req.Op {
			return envelope{}, fmt.Errorf("collective order mismatch: running %q, rank %d sent %q", req.Op, contrib.Rank, contrib.Op)
		}
		if contrib.Rank <= 0 || contrib.Rank >= c.size {
			return envelope{}, fmt.Errorf("contribution from unknown rank %d", contrib.Rank)
		}
		contribs[contrib.Rank] = contrib
		c.peers[contrib.Rank] = string(frames[0])
	}

	resp := envelope{Rank: 0, Op: req.Op}
	for rank := 0; rank < c.size; rank++ {
		combine(&resp, contribs[rank])
	}

	out, err := sonnet.Marshal(resp)
	if err != nil {
		return envelope{}, fmt.Errorf("marshal %s response: %w", req.Op, err)
	}
	for rank := 1; rank < c.size; rank++ {
		if _, err := c.socket.SendMessage(c.peers[rank], out); err != nil {
			return envelope{}, fmt.Errorf("broadcast %s response to rank %d: %w", req.Op, rank, err)
		}
	}
	return resp, nil
}

func (c *Collective) GatherSpikes(local []sim.Spike) ([]sim.Spike, error) {
	resp, err := c.exchange(envelope{Rank: c.rank, Op: opSpikes, Spikes: local}, func(resp *envelope, contrib envelope) {
		resp.Spikes = append(resp.Spikes, contrib.Spikes...)
	})
	if err != nil {
		return nil, err
	}
	return resp.Spikes, nil
}

func (c *Collective) GatherCellLabels(local []sim.CellLabels) ([]sim.CellLabels, error) {
	resp, err := c.exchange(envelope{Rank: c.rank, Op: opLabels, Labels: local}, func(resp *envelope, contrib envelope) {
		resp.Labels = append(resp.Labels, contrib.Labels...)
	})
	if err != nil {
		return nil, err
	}
	return resp.Labels, nil
}

func (c *Collective) AllReduceMin(v sim.TimeType) (sim.TimeType, error) {
	// JSON has no encoding for infinities, so a rank with no delay bound
	// contributes the largest finite value instead.
	if math.IsInf(float64(v), 1) {
		v = sim.TimeType(math.MaxFloat64)
	}
	first := true
	resp, err := c.exchange(envelope{Rank: c.rank, Op: opMin, Value: v}, func(resp *envelope, contrib envelope) {
		if first || contrib.Value < resp.Value {
			resp.Value = contrib.Value
		}
		first = false
	})
	if err != nil {
		return 0, err
	}
	return resp.Value, nil
}
