package socketserver

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/tsubakihara/companion-core/core/chat"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type stream struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	speaker chat.ParticipantID

	mu        sync.Mutex
	closed    bool
	sentences []string
	result    *chat.Result
	err       error
}

// Chunks reads frames off the socket and yields one chunk per sentence
// until a terminal frame arrives. It is single-use.
func (s *stream) Chunks(ctx context.Context) func(func(chat.Chunk, error) bool) {
	return func(yield func(chat.Chunk, error) bool) {
		ctx, span := tracer.Start(ctx, "stream conversation")
		defer span.End()

		readDone := make(chan struct{})
		defer close(readDone)
		go func() {
			select {
			case <-ctx.Done():
				_ = s.Close()
			case <-readDone:
			}
		}()

		sequence := 0
		for {
			_, msg, err := s.conn.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure) || s.isClosed() {
					s.fail(fmt.Errorf("stream closed before completion"))
					return
				}
				err = fmt.Errorf("websocket read error: %w", err)
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				s.fail(err)
				yield(chat.Chunk{}, err)
				return
			}

			var parsed serverMsg
			if err := json.Unmarshal(msg, &parsed); err != nil {
				logger.Warn("Failed to unmarshal gateway frame", "error", err)
				continue
			}

			switch parsed.Type {
			case "chunk":
				speaker := s.speaker
				if parsed.Speaker != "" {
					speaker = chat.ParticipantID(parsed.Speaker)
					s.speaker = speaker
				}
				s.appendSentence(parsed.Sentence)
				chunk := chat.Chunk{
					Speaker:  speaker,
					Sentence: parsed.Sentence,
					Sequence: sequence,
					Variants: parsed.Variants,
				}
				sequence++
				if !yield(chunk, nil) {
					return
				}
			case "keep_alive":
				if !yield(chat.Chunk{Speaker: s.speaker, Sequence: sequence}, nil) {
					return
				}
				sequence++
			case "final":
				span.SetAttributes(attribute.Int("response.sentences", sequence))
				s.complete(parsed)
				_ = s.Close()
				return
			case "error":
				err := fmt.Errorf("gateway error: %s", parsed.Error)
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				s.fail(err)
				yield(chat.Chunk{}, err)
				_ = s.Close()
				return
			default:
				logger.Warn("Unknown gateway frame type", "type", parsed.Type)
			}
		}
	}
}

// Result reports the terminal outcome once Chunks is exhausted.
func (s *stream) Result() (*chat.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return nil, s.err
	}
	if s.result == nil {
		return nil, fmt.Errorf("stream not consumed")
	}
	return s.result, nil
}

// Close tells the gateway to stop and tears the socket down; safe to
// call concurrently with Chunks and more than once.
func (s *stream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if err := s.sendWebsocketMessage(cancelMsg); err != nil {
		return s.conn.Close()
	}
	return s.conn.Close()
}

func (s *stream) sendWebsocketMessage(msg any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("failed to write to websocket: %w", err)
	}
	return nil
}

func (s *stream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *stream) appendSentence(sentence string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sentences = append(s.sentences, sentence)
}

func (s *stream) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err == nil && s.result == nil {
		s.err = err
	}
}

func (s *stream) complete(final serverMsg) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sentences := final.Sentences
	if len(sentences) == 0 {
		sentences = make([]string, len(s.sentences))
		copy(sentences, s.sentences)
	}
	speaker := s.speaker
	if final.Speaker != "" {
		speaker = chat.ParticipantID(final.Speaker)
	}
	s.result = &chat.Result{
		Sentences:         sentences,
		RespondingSpeaker: speaker,
		NextSpeaker:       chat.ParticipantID(final.NextSpeaker),
		Succeeded:         true,
	}
}
