// Package environment names the deployment environments the service runs in.
//
// # Usage
//
//	env := environment.Parse(os.Getenv("APP_ENV"))
//	if env.IsProduction() {
//	    // JSON logs, no debug output
//	}
package environment
