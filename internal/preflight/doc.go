// Package preflight provides readiness checks for the paths, media tools and
// external services mediaflow depends on.
//
// These checks run in two contexts:
//   - The daemon runs RunAll at startup and logs every failure; it still
//     starts so activities that do not need the missing piece keep working.
//   - The CLI "mediaflow status" command uses the individual checks to
//     display service health.
package preflight
