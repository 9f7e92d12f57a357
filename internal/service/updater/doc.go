// Package updater owns the update lifecycle of the installed desktop app.
//
// A Controller holds the single update status and moves it through
// checking, available, not-available, downloading, downloaded and error.
// Every transition is delivered in order to subscribers. Checks run on a
// schedule or on demand; downloads and installs only ever start on explicit
// request. The feed, download and install mechanics sit behind the Backend
// and Installer interfaces; FeedBackend and ProcessInstaller are the default
// implementations.
package updater
