package server

func (s *Server) initRoutes() {
	// Telegram login widget redirect (GET) or client-side result (POST)
	s.RegisterRouteHandler("GET "+RouteAuthCallback, ChainMiddleware(s.TelegramCallbackHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAuthCallback, ChainMiddleware(s.TelegramCallbackHandler(), s.APIMiddleware()...))

	s.RegisterRouteHandler("POST "+RouteAuthTelegram, ChainMiddleware(s.TelegramLoginHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAuthWebApp, ChainMiddleware(s.WebAppLoginHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAuthRefresh, ChainMiddleware(s.RefreshHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAuthLogout, ChainMiddleware(s.LogoutHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAuthDebug, ChainMiddleware(s.DebugLoginHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteAuthMe, ChainMiddleware(s.CurrentUserHandler(), s.APIMiddleware()...))

	s.RegisterRouteHandler("GET "+RouteMetrics, s.metrics.Handler())

	s.RegisterRouteHandler("/", ChainMiddleware(s.pages.ServeHTTP, s.HTMLMiddleWare(s.RequireSession())...))
}
