package api

import (
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/AlexZinkM/avian-backup/docs"
	"github.com/AlexZinkM/avian-backup/internal/handler"
)

// SetupRouter sets up router with handlers.
// Endpoints that run the key derivation share one limiter of parsePerMinute.
func SetupRouter(h *handler.BackupHandler, parsePerMinute int) http.Handler {
	limited := NewRateLimiter(parsePerMinute)

	mux := http.NewServeMux()

	// Swagger UI
	mux.HandleFunc("/swagger/", httpSwagger.WrapHandler)

	// Backup endpoints
	mux.HandleFunc("/backup/create", h.Create)
	mux.Handle("/backup/parse", limited.Middleware(http.HandlerFunc(h.Parse)))
	mux.Handle("/backup/restore", limited.Middleware(http.HandlerFunc(h.Restore)))
	mux.Handle("/backup/restore/ws", limited.Middleware(http.HandlerFunc(h.RestoreWS)))

	// QR transfer endpoints
	mux.HandleFunc("/backup/qr/split", h.Split)
	mux.HandleFunc("/backup/qr/png", h.QRCodes)
	mux.HandleFunc("/backup/qr/combine", h.Combine)

	return mux
}
