package router

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"path/filepath"

	accountHandler "kolabnaskah/internal/account"
	accountRepository "kolabnaskah/internal/account/repository"
	accountService "kolabnaskah/internal/account/service"
	"kolabnaskah/internal/changefeed"
	collabHandler "kolabnaskah/internal/collaborator"
	collabRepository "kolabnaskah/internal/collaborator/repository"
	collabService "kolabnaskah/internal/collaborator/service"
	docHandler "kolabnaskah/internal/document"
	docRepository "kolabnaskah/internal/document/repository"
	docService "kolabnaskah/internal/document/service"
	folderHandler "kolabnaskah/internal/folder"
	folderRepository "kolabnaskah/internal/folder/repository"
	folderService "kolabnaskah/internal/folder/service"
	"kolabnaskah/internal/livesync"
	"kolabnaskah/internal/session"
	"kolabnaskah/middleware"
	"kolabnaskah/pkg/logger"
	"kolabnaskah/socket"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Deps struct {
	DB       *sql.DB
	Feed     changefeed.Feed
	Hub      *socket.Hub
	Relay    livesync.Relay
	Sessions *session.Manager
	RoomFor  func(docID string) string

	CORSOrigin string
	StaticDir  string

	// Base is cancelled at shutdown to end every live view.
	Base context.Context
}

func Setup(d Deps) http.Handler {
	r := mux.NewRouter()

	docs := docService.NewDocumentService(docRepository.NewDocumentRepository(d.DB), d.Feed)
	documents := docHandler.NewDocumentHandler(docs)
	folders := folderHandler.NewFolderHandler(folderService.NewFolderService(folderRepository.NewFolderRepository(d.DB), docs, d.Feed))
	collaborators := collabHandler.NewCollaboratorHandler(collabService.NewCollaboratorService(collabRepository.NewCollaboratorRepository(d.DB)))
	accounts := accountHandler.NewAccountHandler(accountService.NewAccountService(accountRepository.NewAccountRepository(d.DB), d.Sessions))
	live := livesync.NewHandler(livesync.NewService(docs, d.Feed, d.Relay, d.RoomFor), d.Base)

	auth := middleware.AuthMiddleware(d.Sessions)

	// Account
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/auth/signup", accounts.SignUp).Methods(http.MethodPost)
	api.HandleFunc("/auth/signin", accounts.SignIn).Methods(http.MethodPost)
	api.Handle("/auth/signout", auth(http.HandlerFunc(accounts.SignOut))).Methods(http.MethodPost)
	api.Handle("/auth/me", auth(http.HandlerFunc(accounts.Me))).Methods(http.MethodGet)
	api.Handle("/auth/password", auth(http.HandlerFunc(accounts.UpdatePassword))).Methods(http.MethodPut)

	// Documents
	api.Handle("/documents", auth(http.HandlerFunc(documents.GetDocuments))).Methods(http.MethodGet)
	api.Handle("/documents", auth(http.HandlerFunc(documents.CreateDocument))).Methods(http.MethodPost)
	api.Handle("/documents/{id}", auth(http.HandlerFunc(documents.GetDocument))).Methods(http.MethodGet)
	api.Handle("/documents/{id}", auth(http.HandlerFunc(documents.UpdateDocument))).Methods(http.MethodPatch)
	api.Handle("/documents/{id}", auth(http.HandlerFunc(documents.DeleteDocument))).Methods(http.MethodDelete)

	// Collaborators
	api.Handle("/documents/{id}/collaborators", auth(http.HandlerFunc(collaborators.GetCollaborators))).Methods(http.MethodGet)
	api.Handle("/documents/{id}/collaborators", auth(http.HandlerFunc(collaborators.AddCollaborator))).Methods(http.MethodPost)
	api.Handle("/collaborators/{id}", auth(http.HandlerFunc(collaborators.RemoveCollaborator))).Methods(http.MethodDelete)

	// Folders
	api.Handle("/folders", auth(http.HandlerFunc(folders.GetFolders))).Methods(http.MethodGet)
	api.Handle("/folders", auth(http.HandlerFunc(folders.CreateFolder))).Methods(http.MethodPost)
	api.Handle("/folders/{id}", auth(http.HandlerFunc(folders.GetFolder))).Methods(http.MethodGet)
	api.Handle("/folders/{id}", auth(http.HandlerFunc(folders.RenameFolder))).Methods(http.MethodPatch)
	api.Handle("/folders/{id}", auth(http.HandlerFunc(folders.DeleteFolder))).Methods(http.MethodDelete)

	// WebSocket
	r.Handle("/ws/documents/{id}", auth(http.HandlerFunc(live.ServeDocument)))
	if d.Hub != nil {
		r.HandleFunc("/relay/{room}", func(w http.ResponseWriter, req *http.Request) {
			socket.ServeWs(d.Hub, w, req, mux.Vars(req)["room"], req.URL.Query().Get("name"))
		})
	}

	r.HandleFunc("/health", health(d.DB)).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	// Pages
	r.PathPrefix("/").Handler(middleware.GuardMiddleware(d.Sessions)(pages(d.StaticDir)))

	return middleware.CORSMiddleware(d.CORSOrigin)(r)
}

func health(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := db.PingContext(r.Context()); err != nil {
			logger.Sugar.Warnf("Health check: database unreachable: %v", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.Write([]byte(`{"status":"ok"}`))
	}
}

// pages serves the built web app from dir, falling back to index.html so
// client-side routes resolve.
func pages(dir string) http.Handler {
	if dir == "" {
		return http.NotFoundHandler()
	}
	files := http.FileServer(http.Dir(dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := filepath.Join(dir, filepath.Clean("/"+r.URL.Path))
		if info, err := os.Stat(path); err != nil || info.IsDir() {
			if _, err := os.Stat(filepath.Join(path, "index.html")); err != nil {
				http.ServeFile(w, r, filepath.Join(dir, "index.html"))
				return
			}
		}
		files.ServeHTTP(w, r)
	})
}
