package main

import (
	"encoding/json"
	"flag"
	"io"
	"log"
	"net/http"
)

// Small echo upstream for trying out the tester locally: register it as
// an API's base URL and every endpoint reflects back what it received.
func main() {
	addr := flag.String("addr", ":3001", "listen address")
	flag.Parse()

	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		log.Printf("Received request: %s %s", r.Method, r.URL.Path)

		body, _ := io.ReadAll(io.LimitReader(r.Body, 1<<20))

		headers := make(map[string]string, len(r.Header))
		for name := range r.Header {
			headers[name] = r.Header.Get(name)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"method":  r.Method,
			"path":    r.URL.Path,
			"query":   r.URL.Query(),
			"headers": headers,
			"body":    string(body),
		})
	})

	log.Printf("Upstream simulator starting on %s", *addr)
	if err := http.ListenAndServe(*addr, nil); err != nil {
		log.Fatal(err)
	}
}
