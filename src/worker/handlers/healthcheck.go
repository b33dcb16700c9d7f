package handlers

import (
	"fmt"
	"net/http"
)

// Alive answers the worker's liveness probe.
func Alive(w http.ResponseWriter, _ *http.Request) {
	fmt.Fprint(w, "alive")
}
