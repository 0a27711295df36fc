package router

import (
	"github.com/spigell/hirewire/internal/identity"
	"github.com/spigell/hirewire/internal/notify"
)

type View string

const (
	ViewHome        View = "home"
	ViewListings    View = "listings"
	ViewListing     View = "listing"
	ViewPricing     View = "pricing"
	ViewAuth        View = "auth"
	ViewSeeker      View = "seeker"
	ViewEmployer    View = "employer"
	ViewAdmin       View = "admin"
	ViewPostListing View = "post_listing"
	ViewAssessment  View = "assessment"
	ViewPitch       View = "pitch"
	ViewCVReview    View = "cv_review"
)

// DefaultView is where the app starts and where sign-out lands.
const DefaultView = ViewHome

type access int

const (
	public access = iota
	signedIn
	employerOnly
	adminOnly
)

var views = map[View]access{
	ViewHome:        public,
	ViewListings:    public,
	ViewListing:     public,
	ViewPricing:     public,
	ViewAuth:        public,
	ViewSeeker:      signedIn,
	ViewAssessment:  signedIn,
	ViewPitch:       signedIn,
	ViewCVReview:    signedIn,
	ViewEmployer:    employerOnly,
	ViewPostListing: employerOnly,
	ViewAdmin:       adminOnly,
}

// Known reports whether v is a routable view.
func Known(v View) bool {
	_, ok := views[v]
	return ok
}

// Public reports whether v can be shown without signing in.
func Public(v View) bool {
	return views[v] == public && Known(v)
}

// Intent is the action the user was attempting when navigation happened.
type Intent string

const (
	IntentNone      Intent = ""
	IntentApply     Intent = "apply"
	IntentPost      Intent = "post_listing"
	IntentDashboard Intent = "dashboard"
	IntentAnalyze   Intent = "analyze_match"
	IntentReviewCV  Intent = "review_cv"
	IntentPitch     Intent = "record_pitch"
	IntentPurchase  Intent = "purchase"
)

var intentMessages = map[Intent]string{
	IntentApply:     "apply for this position",
	IntentPost:      "post a job",
	IntentDashboard: "open your dashboard",
	IntentAnalyze:   "see how well you match this position",
	IntentReviewCV:  "get your CV reviewed",
	IntentPitch:     "record a video pitch",
	IntentPurchase:  "purchase credits",
}

// Message is the user-facing phrase for the intent.
func (i Intent) Message() string {
	if m, ok := intentMessages[i]; ok {
		return m
	}
	return "continue"
}

// Request asks to show View on behalf of Intent.
type Request struct {
	View   View
	Intent Intent
}

// Notice is the message that accompanies a redirect.
type Notice struct {
	Severity notify.Severity
	Title    string
	Message  string
}

// Decision is the outcome of Gate. When Allowed is false, View is the
// redirect target and the requested view must not be shown.
type Decision struct {
	View    View
	Allowed bool
	// Intent is kept on an auth redirect so it can be resumed after sign-in.
	Intent Intent
	Notice *Notice
}

const (
	TitleIdentityRequired = "Identity Required"
	TitleAccessRestricted = "Access Restricted"
)

// Gate decides where a navigation request ends up for id. It has no side
// effects.
func Gate(req Request, id identity.Identity) Decision {
	level, ok := views[req.View]
	if !ok {
		return Decision{
			View: DefaultView,
			Notice: &Notice{
				Severity: notify.SeverityInfo,
				Title:    "Not Found",
				Message:  "That page does not exist.",
			},
		}
	}

	if level == public {
		return Decision{View: req.View, Allowed: true, Intent: req.Intent}
	}

	if id.IsGuest() {
		return Decision{
			View:   ViewAuth,
			Intent: req.Intent,
			Notice: &Notice{
				Severity: notify.SeverityInfo,
				Title:    TitleIdentityRequired,
				Message:  "Please sign up to " + req.Intent.Message() + ".",
			},
		}
	}

	switch {
	case level == employerOnly && !canEmploy(id),
		level == adminOnly && !id.Admin():
		return Decision{
			View: Landing(id),
			Notice: &Notice{
				Severity: notify.SeverityInfo,
				Title:    TitleAccessRestricted,
				Message:  "Your account cannot open this page.",
			},
		}
	}

	return Decision{View: req.View, Allowed: true, Intent: req.Intent}
}

// Landing is the view a freshly signed-in user goes to. The admin flag wins
// over the role.
func Landing(id identity.Identity) View {
	switch {
	case id.Admin():
		return ViewAdmin
	case id.Role == identity.RoleEmployer:
		return ViewEmployer
	default:
		return ViewSeeker
	}
}

// NavigateHome always shows the home view. It does not sign out.
func NavigateHome() Decision {
	return Decision{View: ViewHome, Allowed: true}
}

func canEmploy(id identity.Identity) bool {
	return id.Role == identity.RoleEmployer || id.Admin()
}
