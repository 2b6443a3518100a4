package resilience

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestMessageClassifierKinds(t *testing.T) {
	c := DefaultClassifier()
	cases := []struct {
		err  error
		want Kind
	}{
		{nil, KindFatal},
		{errors.New("read tcp: connection reset by peer"), KindTransientNetwork},
		{errors.New("[SSL: UNEXPECTED_EOF_WHILE_READING] EOF occurred in violation of protocol"), KindTransientNetwork},
		{errors.New("write: broken pipe"), KindTransientNetwork},
		{errors.New("request Timed Out"), KindTransientNetwork},
		{errors.New("llm: rate limit exceeded (status 429)"), KindRemoteOverload},
		{errors.New("503 Service Unavailable"), KindRemoteOverload},
		{errors.New("quota exhausted"), KindRemoteOverload},
		{errors.New("llm: content rejected (finish_reason=SAFETY)"), KindContentRejected},
		{errors.New("content rejected after connection reset"), KindContentRejected},
		{errors.New("invalid api key"), KindFatal},
		{fmt.Errorf("wrapped: %w", context.Canceled), KindFatal},
		{&CircuitOpenError{State: StateOpen}, KindFatal},
	}
	for _, tc := range cases {
		if got := c.Kind(tc.err); got != tc.want {
			t.Fatalf("Kind(%v) = %s, want %s", tc.err, got, tc.want)
		}
	}
}

func TestKindClass(t *testing.T) {
	if KindTransientNetwork.Class() != ClassRetryable || KindRemoteOverload.Class() != ClassRetryable {
		t.Fatal("expected network and overload failures to be retryable")
	}
	if KindContentRejected.Class() != ClassFatal || KindFatal.Class() != ClassFatal {
		t.Fatal("expected rejection and fatal kinds to be fatal")
	}
}

func TestClassifierWithExtendsCopy(t *testing.T) {
	base := DefaultClassifier()
	extended := base.With(KindRemoteOverload, " Resource Exhausted ", "")
	err := errors.New("RESOURCE EXHAUSTED for model")
	if extended.Classify(err) != ClassRetryable {
		t.Fatal("expected extended signature to be retryable")
	}
	if base.Classify(err) != ClassFatal {
		t.Fatal("expected base classifier to be unchanged")
	}
}

func TestClassifierFunc(t *testing.T) {
	var c Classifier = ClassifierFunc(func(error) ErrorClass { return ClassRetryable })
	if c.Classify(errors.New("anything")) != ClassRetryable {
		t.Fatal("expected func classifier result")
	}
}
