package handlers

import "net/http"

// Ping reports that the API is up.
func Ping(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "TURU REST API is running!",
	})
}
