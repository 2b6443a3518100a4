package resilience

import (
	"context"
	"errors"
	"strings"
)

// ErrorClass tells the retrier whether another attempt may succeed.
type ErrorClass int

const (
	ClassFatal ErrorClass = iota
	ClassRetryable
)

func (c ErrorClass) String() string {
	if c == ClassRetryable {
		return "retryable"
	}
	return "fatal"
}

// Kind is the finer failure taxonomy behind ErrorClass.
type Kind int

const (
	KindFatal Kind = iota
	KindTransientNetwork
	KindRemoteOverload
	KindContentRejected
)

func (k Kind) String() string {
	switch k {
	case KindTransientNetwork:
		return "transient_network"
	case KindRemoteOverload:
		return "remote_overload"
	case KindContentRejected:
		return "content_rejected"
	default:
		return "fatal"
	}
}

// Class maps the kind to its retry class. Content rejections are never retried.
func (k Kind) Class() ErrorClass {
	switch k {
	case KindTransientNetwork, KindRemoteOverload:
		return ClassRetryable
	default:
		return ClassFatal
	}
}

// Classifier decides how an attempt failure is handled.
type Classifier interface {
	Classify(err error) ErrorClass
}

// ClassifierFunc adapts a function to Classifier.
type ClassifierFunc func(err error) ErrorClass

func (f ClassifierFunc) Classify(err error) ErrorClass { return f(err) }

var (
	defaultRejectedSignatures = []string{
		"content rejected",
		"empty content",
		"no content",
		"blocked",
	}
	defaultTransientSignatures = []string{
		"ssl",
		"tls",
		"unexpected_eof",
		"unexpected eof",
		"broken pipe",
		"timed out",
		"timeout",
		"connection",
		"unable to find the server",
		"no such host",
		"eof occurred in violation of protocol",
		"errno 32",
	}
	defaultOverloadSignatures = []string{
		"temporarily unavailable",
		"service unavailable",
		"rate limit",
		"quota",
		"too many requests",
		"server busy",
		"overloaded",
	}
)

// MessageClassifier classifies errors by case-insensitive substring matches
// against the error text. The remote service exposes no structured codes, so
// the message is the only signal. Rejection signatures are checked first so
// a rejected response that happens to mention a network term is not retried.
type MessageClassifier struct {
	rejected  []string
	transient []string
	overload  []string
}

// DefaultClassifier returns the classifier used for inference calls.
func DefaultClassifier() *MessageClassifier {
	return &MessageClassifier{
		rejected:  append([]string(nil), defaultRejectedSignatures...),
		transient: append([]string(nil), defaultTransientSignatures...),
		overload:  append([]string(nil), defaultOverloadSignatures...),
	}
}

// With returns a copy extended with additional signatures for kind.
// KindFatal signatures are ignored since fatal is the fallthrough.
func (c *MessageClassifier) With(kind Kind, signatures ...string) *MessageClassifier {
	clone := &MessageClassifier{
		rejected:  append([]string(nil), c.rejected...),
		transient: append([]string(nil), c.transient...),
		overload:  append([]string(nil), c.overload...),
	}
	for _, sig := range signatures {
		sig = strings.ToLower(strings.TrimSpace(sig))
		if sig == "" {
			continue
		}
		switch kind {
		case KindContentRejected:
			clone.rejected = append(clone.rejected, sig)
		case KindTransientNetwork:
			clone.transient = append(clone.transient, sig)
		case KindRemoteOverload:
			clone.overload = append(clone.overload, sig)
		}
	}
	return clone
}

// Kind returns the taxonomy entry for err.
func (c *MessageClassifier) Kind(err error) Kind {
	if err == nil {
		return KindFatal
	}
	if errors.Is(err, ErrCircuitOpen) || errors.Is(err, context.Canceled) {
		return KindFatal
	}
	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, c.rejected):
		return KindContentRejected
	case containsAny(msg, c.overload):
		return KindRemoteOverload
	case containsAny(msg, c.transient):
		return KindTransientNetwork
	default:
		return KindFatal
	}
}

// Classify implements Classifier.
func (c *MessageClassifier) Classify(err error) ErrorClass {
	return c.Kind(err).Class()
}

func containsAny(msg string, signatures []string) bool {
	for _, sig := range signatures {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}
