package staticredirect

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"testing"
)

func benchmarkWorker(b *testing.B, n int) *Worker {
	entries := make([]string, 0, n)
	for i := 0; i < n; i++ {
		entries = append(entries, fmt.Sprintf(`{"from": "/section%d/*", "to": "/moved/%d/"}`, i, i))
	}
	w, err := NewWorker("https://example.com/", Options{
		Source: &staticSource{data: []byte("[" + strings.Join(entries, ",") + "]")},
	})
	if err != nil {
		b.Fatal(err)
	}
	w.Activate(context.Background())
	return w
}

func BenchmarkInterceptLastRule(b *testing.B) {
	w := benchmarkWorker(b, 500)
	u, _ := url.Parse("https://example.com/section499/page")
	req := Request{Method: "GET", Mode: ModeNavigate, URL: u}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, ok := w.Intercept(req); !ok {
			b.Fatal("expected a redirect")
		}
	}
}

func BenchmarkInterceptParallel(b *testing.B) {
	w := benchmarkWorker(b, 100)
	u, _ := url.Parse("https://example.com/nowhere")
	req := Request{Method: "GET", Mode: ModeNavigate, URL: u}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			w.Intercept(req)
		}
	})
}
