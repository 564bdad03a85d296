package routes

import (
	"github.com/gorilla/mux"

	"crmapi/internal/handlers"
	"crmapi/internal/metrics"
	"crmapi/internal/middleware"
)

func SetupRoutes() *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.CORS)
	r.Use(middleware.Metrics)

	// Public routes
	r.HandleFunc("/health", handlers.Health).Methods("GET")
	r.Handle("/metrics", metrics.Handler()).Methods("GET")
	r.HandleFunc("/register", handlers.Register).Methods("POST")
	r.HandleFunc("/login", handlers.Login).Methods("POST")
	r.HandleFunc("/refresh", handlers.RefreshToken).Methods("POST")

	// Protected routes (require Authorization: Bearer <access_token>)
	protected := r.PathPrefix("/api").Subrouter()
	protected.Use(middleware.JWTMiddleware)

	protected.HandleFunc("/logout", handlers.Logout).Methods("POST")

	protected.HandleFunc("/me", handlers.GetMe).Methods("GET")
	protected.HandleFunc("/me", handlers.UpdateMe).Methods("PUT")
	protected.HandleFunc("/dashboard", handlers.GetDashboard).Methods("GET")

	protected.HandleFunc("/orgs", handlers.GetOrganizations).Methods("GET")
	protected.HandleFunc("/orgs", handlers.CreateOrganization).Methods("POST")
	protected.HandleFunc("/orgs", handlers.UpdateOrganization).Methods("PUT")
	protected.HandleFunc("/orgs/switch", handlers.SwitchOrganization).Methods("POST")

	protected.HandleFunc("/members", handlers.GetMembers).Methods("GET")
	protected.HandleFunc("/members", handlers.AddMember).Methods("POST")
	protected.HandleFunc("/members/{userId}", handlers.UpdateMemberRole).Methods("PUT")
	protected.HandleFunc("/members/{userId}", handlers.RemoveMember).Methods("DELETE")

	protected.HandleFunc("/companies", handlers.GetCompanies).Methods("GET")
	protected.HandleFunc("/companies", handlers.CreateCompany).Methods("POST")
	protected.HandleFunc("/companies/{id}", handlers.UpdateCompany).Methods("PUT")
	protected.HandleFunc("/companies/{id}", handlers.DeleteCompany).Methods("DELETE")

	protected.HandleFunc("/contacts", handlers.GetContacts).Methods("GET")
	protected.HandleFunc("/contacts", handlers.CreateContact).Methods("POST")
	protected.HandleFunc("/contacts/{id}", handlers.UpdateContact).Methods("PUT")
	protected.HandleFunc("/contacts/{id}", handlers.DeleteContact).Methods("DELETE")

	protected.HandleFunc("/deals", handlers.GetDeals).Methods("GET")
	protected.HandleFunc("/deals", handlers.CreateDeal).Methods("POST")
	protected.HandleFunc("/deals/{id}", handlers.UpdateDeal).Methods("PUT")
	protected.HandleFunc("/deals/{id}", handlers.DeleteDeal).Methods("DELETE")
	protected.HandleFunc("/deals/{id}/tags/{tagId}", handlers.AttachDealTag).Methods("POST")
	protected.HandleFunc("/deals/{id}/tags/{tagId}", handlers.DetachDealTag).Methods("DELETE")

	protected.HandleFunc("/tags", handlers.GetTags).Methods("GET")
	protected.HandleFunc("/tags", handlers.CreateTag).Methods("POST")
	protected.HandleFunc("/tags/{id}", handlers.UpdateTag).Methods("PUT")
	protected.HandleFunc("/tags/{id}", handlers.DeleteTag).Methods("DELETE")

	protected.HandleFunc("/tasks", handlers.GetTasks).Methods("GET")
	protected.HandleFunc("/tasks", handlers.CreateTask).Methods("POST")
	protected.HandleFunc("/tasks/{id}", handlers.UpdateTask).Methods("PUT")
	protected.HandleFunc("/tasks/{id}", handlers.DeleteTask).Methods("DELETE")

	return r
}
