package routers

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/udistrital/microservicios_crud/controllers"
	"github.com/udistrital/microservicios_crud/controllers/errorhandler"
	"github.com/udistrital/microservicios_crud/internal/crud"
	"github.com/udistrital/microservicios_crud/internal/middlewares"
	"github.com/udistrital/microservicios_crud/internal/modules"

	beego "github.com/beego/beego/v2/server/web"
	cors "github.com/beego/beego/v2/server/web/filter/cors"
)

// Options reúne lo que necesita el enrutador de un proceso.
type Options struct {
	Modules     []modules.Module
	Auth        middlewares.Options
	CORSOrigins []string
}

var errorOnce sync.Once

// Init arma un enrutador con todos los recursos de los módulos, /health y /metrics.
// Cada llamada crea un enrutador nuevo; sólo el manejador de errores es global.
func Init(opts Options) *beego.ControllerRegister {
	// Manejador de errores; la API sólo responde JSON.
	errorOnce.Do(func() {
		beego.BConfig.WebConfig.AutoRender = false
		beego.ErrorController(&errorhandler.ErrorHandlerController{})
	})

	cr := beego.NewControllerRegister()
	_ = cr.InsertFilter("*", beego.BeforeRouter, cors.Allow(&cors.Options{
		AllowOrigins:     opts.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type", "X-Requested-With", "X-Correlation-Id", "Accept"},
		ExposeHeaders:    []string{"Content-Length", "X-Correlation-Id"},
		AllowCredentials: true,
	}))
	_ = cr.InsertFilter("/api/*", beego.BeforeRouter, middlewares.RequestContext(opts.Auth))

	names := make([]string, 0, len(opts.Modules))
	for _, m := range opts.Modules {
		names = append(names, m.Name)
		for _, h := range m.Resources {
			resource(cr, "/api/"+m.Name+"/"+h.Resource(), h)
		}
	}

	health := &controllers.HealthController{Modules: names}
	cr.Add("/health", health, beego.WithRouterMethods(health, "get:Get"))
	cr.Handler("/metrics", promhttp.Handler())
	return cr
}

// resource publica las rutas de un recurso bajo base.
func resource(cr *beego.ControllerRegister, base string, h crud.Handler) {
	add := func(pattern, route, mapping string) {
		ctrl := &controllers.ResourceController{Resource: h, Route: route}
		cr.Add(pattern, ctrl, beego.WithRouterMethods(ctrl, mapping))
	}

	add(base, "", "get:List;post:Create")
	add(base+"/buscar", "", "get:Search")
	for _, parent := range h.ParentRoutes() {
		add(base+"/"+parent+"/:id:int", parent, "get:ByParent")
	}
	add(base+"/:id:int", "", "get:Get;put:Update;delete:Delete")
	for _, action := range h.ActionNames() {
		add(base+"/:id:int/"+action, action, "get:Action")
	}
}
