package handler

import (
	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/middleware"
	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the /api/v1 surface on r.
func RegisterRoutes(r *gin.Engine, h *Handlers, jwtSecret string) {
	v1 := r.Group("/api/v1")

	// 认证 (无需登录)
	auth := v1.Group("/auth")
	{
		auth.POST("/register", h.Auth.Register)
		auth.POST("/login", h.Auth.Login)
		auth.GET("/google/login", h.Auth.GoogleLogin)
		auth.GET("/google/callback", h.Auth.GoogleCallback)
		auth.POST("/refresh", h.Auth.RefreshToken)
		auth.POST("/password-reset", h.Auth.RequestPasswordReset)
		auth.POST("/password-reset/confirm", h.Auth.ConfirmPasswordReset)
	}

	// SSE 实时推送（支持 query param token）
	v1.GET("/sse/events", middleware.JWTAuth(jwtSecret), h.Notification.Stream)

	// 需要认证的路由
	authorized := v1.Group("")
	authorized.Use(middleware.JWTAuth(jwtSecret))
	{
		authorized.GET("/auth/me", h.Auth.GetCurrentUser)
		authorized.PUT("/auth/me", h.Auth.UpdateProfile)
		authorized.POST("/auth/logout", h.Auth.Logout)

		users := authorized.Group("/users")
		{
			users.GET("", h.User.List)
			users.GET("/:id", h.User.Get)
			users.PUT("/:id/role", h.User.SetRole)
			users.PUT("/:id/status", h.User.SetStatus)
			users.PUT("/:id/projects", h.User.SetProjects)
		}

		projects := authorized.Group("/projects")
		{
			projects.GET("", h.Project.List)
			projects.POST("", h.Project.Create)
			projects.GET("/:id", h.Project.Get)
			projects.PUT("/:id", h.Project.Update)
			projects.POST("/:id/propose-closure", h.Project.ProposeClosure)
			projects.POST("/:id/cd-verify", h.Project.CDVerifyClosure)
			projects.POST("/:id/cd-reject", h.Project.CDRejectClosure)
			projects.POST("/:id/md-lock", h.Project.MDLock)
			projects.POST("/:id/md-reject", h.Project.MDRejectClosure)
			projects.POST("/:id/unlock", h.Project.Unlock)

			// 项目资源
			projects.GET("/:id/resources", h.Project.ListResources)
			projects.POST("/:id/supervisors", h.Project.AddSupervisor)
			projects.POST("/:id/equipments", h.Project.AddEquipment)
			projects.POST("/:id/worker-teams", h.Project.AddWorkerTeam)
			projects.DELETE("/:id/resources/:kind/:resourceId", h.Project.RemoveResource)
		}

		swos := authorized.Group("/swos")
		{
			swos.GET("", h.SWO.List)
			swos.POST("", h.SWO.Create)
			swos.GET("/:id", h.SWO.Get)
			swos.PUT("/:id", h.SWO.Update)
			swos.POST("/:id/accept", h.SWO.Accept())
			swos.POST("/:id/request-change", h.SWO.RequestChange())
			swos.POST("/:id/request-closure", h.SWO.RequestClosure())
			swos.POST("/:id/pm-evaluation", h.SWO.PMEvaluation)
			swos.POST("/:id/cd-verify", h.SWO.CDVerify())
			swos.POST("/:id/cd-reject", h.SWO.CDReject())
			swos.POST("/:id/gm-acknowledge", h.SWO.GMAcknowledge())
			swos.POST("/:id/gm-reject", h.SWO.GMReject())
			swos.POST("/:id/md-lock", h.SWO.MDLock())
			swos.POST("/:id/md-reject", h.SWO.MDReject())
			swos.POST("/:id/resubmit-closure", h.SWO.ResubmitClosure())
			swos.POST("/:id/cancel-closure", h.SWO.CancelClosure())
			swos.GET("/:id/progress", h.SWO.Progress)
			swos.GET("/:id/export", h.SWO.Export)
			swos.POST("/:id/activities/import", h.SWO.ImportActivities)
		}
		authorized.GET("/templates/activities", h.SWO.ActivityTemplate)

		reports := authorized.Group("/reports")
		{
			reports.GET("", h.Report.List)
			reports.POST("", h.Report.Submit)
			reports.POST("/draft", h.Report.SaveDraft)
			reports.POST("/attachments", h.Report.UploadAttachments)
			reports.GET("/:id", h.Report.Get)
			reports.PUT("/:id", h.Report.Update)
			reports.DELETE("/:id", h.Report.Delete)
			reports.POST("/:id/approve", h.Report.Approve)
			reports.POST("/:id/reject", h.Report.Reject)
			reports.DELETE("/:id/attachments", h.Report.RemoveAttachment)
		}

		authorized.GET("/notifications", h.Notification.List)
		authorized.GET("/activity-logs", h.ActivityLog.List)
	}
}
