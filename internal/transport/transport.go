package transport

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bookstack-dev/library-reservations/internal/transport/middleware"
)

func InitRoutes(
	reservationHandler *ReservationHandler,
	catalogHandler *CatalogHandler,
	userHandler *UserHandler,
	loanHandler *LoanHandler,
	adminHandler *AdminHandler,
) *gin.Engine {

	router := gin.New()

	// Middleware
	router.Use(gin.Recovery())
	router.Use(middleware.CORS())
	router.Use(middleware.Logger())
	router.Use(middleware.Timeout(30 * time.Second))

	// API routes
	api := router.Group("/api/v1")
	{
		// Reservation routes
		reservations := api.Group("/reservations")
		{
			reservations.POST("", reservationHandler.CreateReservation)
			reservations.GET("", reservationHandler.GetActiveReservations)
			reservations.GET("/:id", reservationHandler.GetReservation)
			reservations.DELETE("/:id", reservationHandler.CancelReservation)
			reservations.POST("/:id/complete", reservationHandler.CompleteReservation)
			reservations.POST("/:id/extend", reservationHandler.ExtendReservation)
			reservations.GET("/users/:user_id", reservationHandler.GetUserReservations)
		}

		// Catalog routes
		resources := api.Group("/resources")
		{
			resources.POST("", catalogHandler.AddResource)
			resources.GET("", catalogHandler.GetResources)
			resources.GET("/:id", catalogHandler.GetResource)
			resources.DELETE("/:id", catalogHandler.RemoveResource)
			resources.GET("/:id/queue", catalogHandler.GetQueueLength)
		}

		// User routes
		users := api.Group("/users")
		{
			users.POST("/register", userHandler.RegisterUser)
			users.GET("", userHandler.GetAllUsers)
			users.GET("/:id", userHandler.GetUser)
		}

		// Loan routes
		loans := api.Group("/loans")
		{
			loans.POST("", loanHandler.Borrow)
			loans.GET("/:id", loanHandler.GetLoan)
			loans.POST("/:id/return", loanHandler.Return)
			loans.POST("/:id/renew", loanHandler.Renew)
			loans.GET("/active", loanHandler.GetActiveLoans)
			loans.GET("/overdue", loanHandler.GetOverdueLoans)
			loans.GET("/users/:user_id", loanHandler.GetUserLoans)
		}

		// Admin routes
		admin := api.Group("/admin")
		{
			admin.POST("/monitor/run", adminHandler.RunVerification)
			admin.GET("/stats", adminHandler.GetStats)
		}
	}

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return router
}
