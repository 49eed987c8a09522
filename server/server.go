package server

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/blocklite-dev/blocklite/server/utils"
)

// Server chi 라우터 기반 HTTP 서버
type Server struct {
	router *chi.Mux
	addr   string
	server *http.Server
}

// NewServer 서버 인스턴스 생성
func NewServer(addr string) *Server {
	router := chi.NewRouter()

	return &Server{
		router: router,
		addr:   addr,
		server: &http.Server{
			Addr:         addr,
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// Router 모듈 등록용 라우터
func (s *Server) Router() *chi.Mux {
	return s.router
}

// RegisterModule 모듈의 API 엔드포인트 등록
func (s *Server) RegisterModule(module ModuleRegistrar) error {
	return module.RegisterRoutes(s.router)
}

// Start HTTP 서버 시작 (블로킹)
func (s *Server) Start() error {
	log.Printf("Starting server on %s", s.addr)
	return s.server.ListenAndServe()
}

// Shutdown 우아한 종료
func (s *Server) Shutdown(ctx context.Context) error {
	log.Printf("Shutting down server...")
	return s.server.Shutdown(ctx)
}

// SetupBasicRoutes 모듈과 무관한 공통 라우트
func (s *Server) SetupBasicRoutes() {
	s.router.Get("/api/health", func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteJSONResponse(w, map[string]any{
			"status":    "healthy",
			"service":   utils.ServiceTag,
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})

	// 루트는 엔드포인트 안내만 돌려줌 (웹 UI 없음)
	s.router.Get("/", func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteJSONResponse(w, map[string]any{
			"service": utils.ServiceTag,
			"endpoints": []string{
				"/api/health",
				"/api/channel/health",
				"/api/channel/statistics",
				"/api/channel/queue",
				"/api/ledger/status",
				"/api/ledger/block",
				"/api/ledger/produce",
			},
		})
	})
}
