package localserver

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/tsubakihara/companion-core/core/chat"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// OpenStream prepares a streamed conversation request. The HTTP exchange
// happens inside the returned stream's Chunks iterator, so opening never
// blocks on the network.
func (c *Client) OpenStream(_ context.Context, req chat.Request) (chat.Stream, error) {
	return &stream{
		client:       c,
		request:      toConversationRequest(req),
		languageCode: req.LanguageCode,
		speaker:      defaultSpeaker(req),
	}, nil
}

// defaultSpeaker picks the speaker attributed to chunks whose line does
// not name one. Auto-routed requests stay unattributed until the gateway
// names the speaker.
func defaultSpeaker(req chat.Request) chat.ParticipantID {
	if req.TargetSpeaker == chat.AutoSpeaker {
		return chat.NoSpeaker
	}
	return req.TargetSpeaker
}

type stream struct {
	client       *Client
	request      conversationRequest
	languageCode string
	speaker      chat.ParticipantID

	mu       sync.Mutex
	cancelFn context.CancelFunc
	closed   bool

	sentences []string
	result    *chat.Result
	err       error
}

// Chunks performs the request and yields one chunk per streamed sentence,
// in line order. It is single-use.
func (s *stream) Chunks(ctx context.Context) func(func(chat.Chunk, error) bool) {
	return func(yield func(chat.Chunk, error) bool) {
		ctx, span := tracer.Start(ctx, "stream conversation")
		defer span.End()
		span.SetAttributes(
			attribute.Int("request.chat_idx", s.request.ChatIdx),
			attribute.Int("request.regenerate_idx", s.request.RegenerateIdx),
			attribute.Bool("request.web_search", s.request.WebSearch),
		)

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			s.fail(fmt.Errorf("stream closed before consumption"))
			return
		}
		s.cancelFn = cancel
		s.mu.Unlock()

		requestBodyBytes, err := json.Marshal(s.request)
		if err != nil {
			err = fmt.Errorf("error marshalling JSON: %w", err)
			span.RecordError(err)
			s.fail(err)
			yield(chat.Chunk{}, err)
			return
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
			s.client.baseURL+conversationPath, bytes.NewBuffer(requestBodyBytes))
		if err != nil {
			err = fmt.Errorf("error creating HTTP request: %w", err)
			span.RecordError(err)
			s.fail(err)
			yield(chat.Chunk{}, err)
			return
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := s.client.httpClient.Do(httpReq)
		if err != nil {
			err = fmt.Errorf("error sending request: %w", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			s.fail(err)
			yield(chat.Chunk{}, err)
			return
		}
		defer resp.Body.Close()

		span.SetAttributes(attribute.Int("response.status_code", resp.StatusCode))
		if resp.StatusCode != http.StatusOK {
			if errorBody, readErr := io.ReadAll(resp.Body); readErr == nil {
				span.SetAttributes(attribute.String("response.error", string(errorBody)))
			}
			err := fmt.Errorf("non-OK HTTP status: %s", resp.Status)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			s.fail(err)
			yield(chat.Chunk{}, err)
			return
		}

		sequence := 0
		nextSpeaker := chat.NoSpeaker
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}

			var parsed streamLine
			if err := json.Unmarshal(line, &parsed); err != nil {
				err = fmt.Errorf("error unmarshalling JSON line: %w", err)
				span.RecordError(err)
				s.fail(err)
				yield(chat.Chunk{}, err)
				return
			}

			if parsed.Error != "" {
				err := fmt.Errorf("gateway error: %s", parsed.Error)
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				s.fail(err)
				yield(chat.Chunk{}, err)
				return
			}

			speaker := s.speaker
			if parsed.Speaker != "" {
				speaker = chat.ParticipantID(parsed.Speaker)
				s.speaker = speaker
			}
			if parsed.NextSpeaker != "" {
				nextSpeaker = chat.ParticipantID(parsed.NextSpeaker)
			}

			if len(parsed.ReplyList) == 0 && !parsed.Final {
				// Keep-alive line: forwarded so downstream timeouts reset.
				if !yield(chat.Chunk{Speaker: speaker, Sequence: sequence}, nil) {
					return
				}
				sequence++
				continue
			}

			for _, reply := range parsed.ReplyList {
				sentence := reply.sentenceFor(s.languageCode)
				s.sentences = append(s.sentences, sentence)
				chunk := chat.Chunk{
					Speaker:  speaker,
					Sentence: sentence,
					Sequence: sequence,
					Variants: reply.variants(),
				}
				sequence++
				if !yield(chunk, nil) {
					return
				}
			}

			if parsed.Final {
				break
			}
		}

		if err := scanner.Err(); err != nil {
			err = fmt.Errorf("error reading stream: %w", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			s.fail(err)
			yield(chat.Chunk{}, err)
			return
		}

		span.SetAttributes(attribute.Int("response.sentences", len(s.sentences)))
		s.complete(nextSpeaker)
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

// Close cancels the in-flight exchange; safe to call concurrently with
// Chunks and more than once.
func (s *stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	if s.cancelFn != nil {
		s.cancelFn()
	}
	return nil
}

func (s *stream) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err == nil {
		s.err = err
	}
}

func (s *stream) complete(nextSpeaker chat.ParticipantID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sentences := make([]string, len(s.sentences))
	copy(sentences, s.sentences)
	s.result = &chat.Result{
		Sentences:         sentences,
		RespondingSpeaker: s.speaker,
		NextSpeaker:       nextSpeaker,
		Succeeded:         true,
	}
}
