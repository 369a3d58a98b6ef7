// Package httpapp provides the HTTP server for EcoTrac.
//
//	@title						EcoTrac API
//	@version					1.0
//	@description				Community eco challenges and tips.
//	@description
//	@description				Challenges are free-form documents. Users join them by email, post tips,
//	@description				and read back their activity feed with the joined challenges attached.
//	@description				No authentication: the email in the request identifies the user.
//
//	@contact.name				EcoTrac
//	@license.name				MIT
//
//	@host						localhost:3000
//	@BasePath					/
//
//	@tag.name					Challenges
//	@tag.description			Create, browse, update and delete challenges.
//
//	@tag.name					Joins
//	@tag.description			Join a challenge once per email. The join audit log is readable as well.
//
//	@tag.name					Activities
//	@tag.description			Per-user feed of joins and posted tips.
//
//	@tag.name					Tips
//	@tag.description			Short eco tips with an upvote counter.
//
//	@tag.name					Health
//	@tag.description			Liveness and store health.
package httpapp
