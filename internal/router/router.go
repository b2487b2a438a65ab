package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/school-management/internal/auth"
	"github.com/iliyamo/school-management/internal/handler"
	"github.com/iliyamo/school-management/internal/middleware"
	"github.com/iliyamo/school-management/internal/model"
)

// Handlers bundles every handler the router needs so the call site in main
// stays a single struct literal.
type Handlers struct {
	Auth      *handler.AuthHandler
	Users     *handler.UserHandler
	Students  *handler.StudentHandler
	Teachers  *handler.TeacherHandler
	Academic  *handler.AcademicHandler
	Grades    *handler.GradeHandler
	Dormitory *handler.DormitoryHandler
	Library   *handler.LibraryHandler
	Finance   *handler.FinanceHandler
}

// Register wires all routes on the provided Echo instance. Public routes live
// under /api/auth plus /healthz and the payment webhook; everything else sits
// behind JWTAuth with per-route role gates.
func Register(e *echo.Echo, h Handlers, jwtSecret string, revoker auth.Revoker) {
	e.GET("/healthz", handler.Health)

	// Session bootstrap endpoints carry no token yet.
	pub := e.Group("/api/auth")
	pub.POST("/register", h.Auth.Register)
	pub.POST("/login", h.Auth.Login)
	pub.POST("/refresh", h.Auth.RefreshToken)

	// The gateway signs the webhook body itself, so no JWT here.
	e.POST("/api/finance/payments/webhook", h.Finance.PaymentWebhook)

	api := e.Group("/api")
	api.Use(middleware.JWTAuth(jwtSecret, revoker))

	api.POST("/auth/logout", h.Auth.Logout)
	api.POST("/auth/enable-2fa", h.Auth.Enable2FA)
	api.POST("/auth/verify-2fa", h.Auth.Verify2FA)
	api.GET("/auth/me", h.Auth.Me)

	admins := middleware.RequireRole(model.RoleSuperadmin, model.RoleAdmin)

	api.GET("/users", h.Users.List, admins)
	api.GET("/users/:id", h.Users.Get)
	api.PATCH("/users/:id", h.Users.Update, admins)
	api.DELETE("/users/:id", h.Users.Delete, middleware.RequireRole(model.RoleSuperadmin))

	studentWrite := middleware.RequireRole(model.RoleAdmin, model.RoleHeadmaster)
	api.POST("/students", h.Students.Create, studentWrite)
	api.GET("/students", h.Students.List)
	api.GET("/students/:id", h.Students.Get)
	api.PATCH("/students/:id", h.Students.Update, middleware.RequireRole(model.RoleAdmin, model.RoleHeadmaster, model.RoleTeacher))
	api.DELETE("/students/:id", h.Students.Delete, admins)

	api.POST("/teachers", h.Teachers.Create, studentWrite)
	api.GET("/teachers", h.Teachers.List)
	api.GET("/teachers/:id", h.Teachers.Get)
	api.PATCH("/teachers/:id", h.Teachers.Update, studentWrite)
	api.DELETE("/teachers/:id", h.Teachers.Delete, admins)

	api.POST("/classes", h.Academic.CreateClass, studentWrite)
	api.GET("/classes", h.Academic.ListClasses)
	api.GET("/classes/:id", h.Academic.GetClass)
	api.POST("/subjects", h.Academic.CreateSubject, studentWrite)
	api.GET("/subjects", h.Academic.ListSubjects)

	graders := middleware.RequireRole(model.RoleTeacher, model.RoleAdmin)
	api.POST("/grades", h.Grades.CreateGrade, graders)
	api.GET("/grades", h.Grades.ListGrades)
	api.POST("/attendance", h.Grades.MarkAttendance, graders)
	api.GET("/attendance", h.Grades.ListAttendance)

	dormStaff := middleware.RequireRole(model.RoleAdmin, model.RoleStaff)
	api.POST("/dormitories", h.Dormitory.CreateDormitory, studentWrite)
	api.GET("/dormitories", h.Dormitory.ListDormitories)
	api.POST("/dormitories/rooms", h.Dormitory.CreateRoom, dormStaff)
	api.GET("/dormitories/rooms", h.Dormitory.ListRooms)
	api.POST("/dormitories/allocations", h.Dormitory.CreateAllocation, dormStaff)
	api.GET("/dormitories/allocations", h.Dormitory.ListAllocations)
	api.POST("/dormitories/allocations/:id/end", h.Dormitory.EndAllocation, dormStaff)

	librarians := middleware.RequireRole(model.RoleLibrarian, model.RoleAdmin)
	api.POST("/library/books", h.Library.CreateBook, librarians)
	api.GET("/library/books", h.Library.ListBooks)
	api.POST("/library/loans", h.Library.CreateLoan, middleware.RequireRole(model.RoleLibrarian))
	api.GET("/library/loans", h.Library.ListLoans)
	api.POST("/library/loans/:id/return", h.Library.ReturnLoan, middleware.RequireRole(model.RoleLibrarian))

	finance := middleware.RequireRole(model.RoleFinance, model.RoleAdmin)
	api.POST("/finance/fee-types", h.Finance.CreateFeeType, finance)
	api.GET("/finance/fee-types", h.Finance.ListFeeTypes)
	api.POST("/finance/invoices", h.Finance.CreateInvoice, finance)
	api.GET("/finance/invoices", h.Finance.ListInvoices)
	api.POST("/finance/payments", h.Finance.CreatePayment)
}
