package llm

import (
	"context"
	"errors"
	"io"

	"go.uber.org/zap"
)

// Stream is a pull-based sequence of response fragments. It runs no
// goroutines of its own; Close cancels the underlying request.
//
//	for s.Next() {
//		fmt.Print(s.Text())
//	}
//	s.Close()
type Stream struct {
	reader  FragmentReader
	cancel  context.CancelFunc
	logger  *zap.Logger
	pending []string
	cur     string
	started bool
	done    bool
	err     error
}

func newStream(reader FragmentReader, cancel context.CancelFunc, logger *zap.Logger) *Stream {
	return &Stream{reader: reader, cancel: cancel, logger: logger}
}

// failedStream yields the apology as its only fragment.
func failedStream(err error) *Stream {
	return &Stream{pending: []string{ApologyText}, done: true, err: err}
}

// Next advances to the next fragment.
func (s *Stream) Next() bool {
	if len(s.pending) > 0 {
		s.cur, s.pending = s.pending[0], s.pending[1:]
		s.started = true
		return true
	}
	if s.done || s.reader == nil {
		return false
	}
	text, err := s.reader.Recv()
	switch {
	case err == nil:
		s.cur = text
		s.started = true
		return true
	case errors.Is(err, io.EOF):
		s.finish()
		return false
	default:
		s.err = err
		s.finish()
		if !s.started {
			s.logger.Error("stream failed before first fragment", zap.Error(err))
			s.cur = ApologyText
			s.started = true
			return true
		}
		s.logger.Error("stream interrupted", zap.Error(err))
		return false
	}
}

func (s *Stream) Text() string { return s.cur }

// Err reports the backend failure that ended the stream, if any. The
// stream has already substituted the apology when nothing was produced.
func (s *Stream) Err() error { return s.err }

// Close stops the stream early. Safe to call more than once.
func (s *Stream) Close() error {
	s.pending = nil
	return s.finish()
}

func (s *Stream) finish() error {
	s.done = true
	var err error
	if s.reader != nil {
		err = s.reader.Close()
		s.reader = nil
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	return err
}
