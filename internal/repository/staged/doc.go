// Package staged persists the update downloaded by the update agent.
//
// The FileRepository stores the staged update as YAML next to the download
// so that an agent restarted before installing still offers it.
package staged
