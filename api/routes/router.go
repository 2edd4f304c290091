package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/procurebot/procurement-backend/api/controllers"
	"github.com/procurebot/procurement-backend/api/middleware"
	"github.com/procurebot/procurement-backend/pkg/auth"
	"github.com/procurebot/procurement-backend/pkg/config"
	"github.com/procurebot/procurement-backend/pkg/enums"
	"github.com/procurebot/procurement-backend/pkg/logger"
	"github.com/procurebot/procurement-backend/pkg/metrics"
	pkgredis "github.com/procurebot/procurement-backend/pkg/redis"
)

// PrincipalResolver upserts the caller and returns its principal.
type PrincipalResolver interface {
	EnsurePrincipal(ctx context.Context, tgUserID, name string) (auth.Principal, error)
	EnsureDevPrincipal(ctx context.Context) (auth.Principal, error)
}

// InitDataVerifier validates Telegram WebApp init data.
type InitDataVerifier interface {
	Verify(raw string) (*auth.InitData, error)
}

// Deps carries everything the router wires into handlers. Readiness entries
// and the metrics fields are optional.
type Deps struct {
	Config *config.Config
	Logger *logger.Logger

	Verifier     InitDataVerifier
	Users        PrincipalResolver
	Idempotency  pkgredis.IdempotencyStore
	Readiness    map[string]controllers.Pinger
	HTTPMetrics  *metrics.HTTPMetrics
	MetricsRoute http.Handler

	Suppliers    controllers.SupplierService
	Products     controllers.ProductService
	Rankings     controllers.RankingService
	Requisitions controllers.RequisitionService
	Orders       controllers.OrderService
	Deliveries   controllers.DeliveryService
}

func NewRouter(d Deps) http.Handler {
	cfg := d.Config
	logg := d.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)
	if d.HTTPMetrics != nil {
		r.Use(d.HTTPMetrics.Middleware)
	}
	r.Use(middleware.Logging(logg))

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, d.Readiness))
	})
	if d.MetricsRoute != nil {
		r.Method(http.MethodGet, "/metrics", d.MetricsRoute)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.TelegramAuth(d.Verifier, d.Users, cfg.Telegram.DevAllowUnsafe, logg))

		r.Get("/me", controllers.Me(logg))
		r.Get("/products", controllers.ListOrderableProducts(d.Products, logg))
		r.With(middleware.Idempotency(d.Idempotency, logg)).
			Post("/requisitions", controllers.SubmitRequisition(d.Requisitions, logg))
		r.Get("/orders/active", controllers.ListActiveOrders(d.Orders, logg))

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(enums.UserRoleAdmin, logg))

			r.Route("/suppliers", func(r chi.Router) {
				r.Get("/", controllers.AdminListSuppliers(d.Suppliers, logg))
				r.Post("/", controllers.AdminCreateSupplier(d.Suppliers, logg))
				r.Patch("/{supplierId}", controllers.AdminUpdateSupplier(d.Suppliers, logg))
				r.Delete("/{supplierId}", controllers.AdminDeleteSupplier(d.Suppliers, logg))
				r.Post("/{supplierId}/delivered", controllers.AdminMarkDelivered(d.Deliveries, logg))
			})

			r.Route("/products", func(r chi.Router) {
				r.Get("/", controllers.AdminListProducts(d.Products, logg))
				r.Post("/", controllers.AdminCreateProduct(d.Products, logg))
				r.Patch("/{productId}", controllers.AdminUpdateProduct(d.Products, logg))
				r.Delete("/{productId}", controllers.AdminDeleteProduct(d.Products, logg))
				r.Get("/{productId}/suppliers", controllers.AdminListProductSuppliers(d.Rankings, logg))
				r.Post("/{productId}/suppliers", controllers.AdminAttachSupplier(d.Rankings, logg))
				r.Delete("/{productId}/suppliers/{supplierId}", controllers.AdminDetachSupplier(d.Rankings, logg))
				r.Post("/{productId}/suppliers/{supplierId}/primary", controllers.AdminSetPrimarySupplier(d.Rankings, logg))
			})

			r.Patch("/order-items/{itemId}", controllers.AdminAdjustOrderItem(d.Orders, logg))

			r.Route("/requisitions", func(r chi.Router) {
				r.Get("/", controllers.AdminListRequisitions(d.Requisitions, logg))
				r.Get("/{requisitionId}", controllers.AdminRequisitionDetail(d.Requisitions, logg))
				r.Get("/{requisitionId}/export.xlsx", controllers.AdminExportRequisition(d.Requisitions, logg))
			})
		})
	})

	return r
}
