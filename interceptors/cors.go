// Package interceptors provides ready-made middleware for an ember `Server`.
package interceptors

import (
	"strings"

	"github.com/emberhttp/ember"
)

// CORSConfig defines the config for the CORS interceptor.
type CORSConfig struct {
	// AllowOrigins is the list of origins that may access the resource.
	//
	// Default value: ["*"]
	AllowOrigins []string

	// AllowMethods is the list of methods advertised on preflight
	// responses.
	//
	// Default value: ["GET", "POST", "PUT", "PATCH", "DELETE"]
	AllowMethods []string

	// AllowHeaders is the list of request headers that can be used when
	// making the actual request.
	//
	// Default value: nil
	AllowHeaders []string

	// ExposeHeaders is the list of response headers that clients are
	// allowed to access.
	//
	// Default value: nil
	ExposeHeaders []string

	// AllowCredentials indicates whether the response to the request can
	// be exposed when the credentials flag is true.
	//
	// Default value: false
	AllowCredentials bool
}

// fill keeps all the fields of the c have value.
func (c *CORSConfig) fill() {
	if len(c.AllowOrigins) == 0 {
		c.AllowOrigins = []string{"*"}
	}

	if len(c.AllowMethods) == 0 {
		c.AllowMethods = []string{
			"GET",
			"POST",
			"PUT",
			"PATCH",
			"DELETE",
		}
	}
}

// CORS returns a response interceptor that sets the Cross-Origin Resource
// Sharing headers. The server sets no CORS policy on its own; installing
// this interceptor is what turns it on.
func CORS() ember.ResponseInterceptor {
	return CORSWithConfig(CORSConfig{})
}

// CORSWithConfig returns a CORS interceptor from the config. See the `CORS`.
func CORSWithConfig(config CORSConfig) ember.ResponseInterceptor {
	config.fill()

	allowMethods := strings.Join(config.AllowMethods, ", ")
	allowHeaders := strings.Join(config.AllowHeaders, ", ")
	exposeHeaders := strings.Join(config.ExposeHeaders, ", ")

	return func(req *ember.Request, res *ember.Response) *ember.Response {
		origin := req.Header("Origin")
		if origin == "" {
			return res
		}

		allowedOrigin := ""
		for _, o := range config.AllowOrigins {
			if o == "*" || strings.EqualFold(o, origin) {
				allowedOrigin = o
				break
			}
		}

		if allowedOrigin == "" {
			return res
		}

		res.Header.Set("Access-Control-Allow-Origin", allowedOrigin)
		res.Header.Add("Vary", "Origin")
		if config.AllowCredentials {
			res.Header.Set(
				"Access-Control-Allow-Credentials",
				"true",
			)
		}

		if req.Method == "OPTIONS" {
			res.Header.Set(
				"Access-Control-Allow-Methods",
				allowMethods,
			)
			if allowHeaders != "" {
				res.Header.Set(
					"Access-Control-Allow-Headers",
					allowHeaders,
				)
			}
		} else if exposeHeaders != "" {
			res.Header.Set(
				"Access-Control-Expose-Headers",
				exposeHeaders,
			)
		}

		return res
	}
}
