package handlers

import (
	"net/http"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

func NewRouter(
	auth *AuthHandler,
	cal *CalendarHandler,
	sched *ScheduleHandler,
	grades *GradeHandler,
	authMiddleware func(http.Handler) http.Handler,
	loggerMiddleware func(http.Handler) http.Handler,
) http.Handler {
	withAuth := func(h http.HandlerFunc) http.Handler {
		return authMiddleware(h)
	}

	apiuser := http.NewServeMux()

	apiuser.Handle("POST /register", http.HandlerFunc(auth.register))
	apiuser.Handle("POST /login", http.HandlerFunc(auth.login))

	apiuser.Handle("GET /calendar/link", withAuth(cal.link))
	apiuser.Handle("GET /calendar/callback", withAuth(cal.callback))
	apiuser.Handle("DELETE /calendar/link", withAuth(cal.unlink))

	apiuser.Handle("POST /schedule/sync", withAuth(sched.sync))
	apiuser.Handle("POST /schedule/import", withAuth(sched.importExtracted))
	apiuser.Handle("GET /schedule", withAuth(sched.list))

	apiuser.Handle("POST /grades", withAuth(grades.addGrade))
	apiuser.Handle("GET /grades", withAuth(grades.listGrades))
	apiuser.Handle("GET /gpa", withAuth(grades.getGPA))

	root := http.NewServeMux()
	root.Handle("/api/user/", http.StripPrefix("/api/user", apiuser))

	return chain(root, loggerMiddleware)
}
