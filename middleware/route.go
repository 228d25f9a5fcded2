package middleware

import (
	midsec "callbridge/middleware/security"

	"github.com/gin-gonic/gin"
)

type RouteOpt struct {
	IsAuth bool
}

var authMW gin.HandlerFunc

// Configure installs the auth middleware used by every IsAuth route.
func Configure(opts midsec.Options) {
	authMW = midsec.Middleware(opts)
}

func POST(r gin.IRoutes, path string, handler gin.HandlerFunc, opt RouteOpt) {
	if opt.IsAuth {
		r.POST(path, authMW, handler)
	} else {
		r.POST(path, handler)
	}
}

func GET(r gin.IRoutes, path string, handler gin.HandlerFunc, opt RouteOpt) {
	if opt.IsAuth {
		r.GET(path, authMW, handler)
	} else {
		r.GET(path, handler)
	}
}
