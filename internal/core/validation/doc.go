// Package validation provides pure validation helpers shared by the
// configuration records (deployments and builds).
//
// Validation never stops at the first failure: callers collect every problem
// into a Problems list and turn it into a single ConfigError, so a user sees
// all mistakes in a manifest entry at once.
//
// # Usage
//
//	problems := validation.StructProblems(d)
//	if d.ImageName == "" && d.BuildName == "" {
//	    problems.Add("You must set one of image_name or build_name")
//	}
//	return problems.Err("deployment", d.Name)
package validation
