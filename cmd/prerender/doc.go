// Command prerender fills in missing thumbnails on disk.
//
//	prerender audio [-max-dim 512] [-workers N] [ROOT]
//	prerender video [-ext jpg] [-seek 5] [-max-dim 512] [ROOT]
//
// The audio command walks ROOT and writes folder.jpg into every folder that
// lacks one, using the first embedded picture among the folder's audio files.
// The video command writes <name>.<ext> next to every video that has no image
// with the same name. Existing files are never replaced.
//
// Media is read through the same engines the server uses, over file:// URLs
// rooted at ROOT. Work pauses while heap usage is above the critical water
// mark of the memory monitor.
package main
