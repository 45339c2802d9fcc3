package main

import "fmt"

const steamCDNBase = "https://cdn.cloudflare.steamstatic.com/steam/apps"

func cdnURL(appID int, file string) string {
	return fmt.Sprintf("%s/%d/%s", steamCDNBase, appID, file)
}

// HeaderImageURL is the 460x215 store header
func HeaderImageURL(appID int) string { return cdnURL(appID, "header.jpg") }

// CapsuleImageURL is the 616x353 main capsule
func CapsuleImageURL(appID int) string { return cdnURL(appID, "capsule_616x353.jpg") }

// SmallCapsuleURL is the 184x69 search capsule
func SmallCapsuleURL(appID int) string { return cdnURL(appID, "capsule_184x69.jpg") }

// LibraryImageURL is the 600x900 library artwork
func LibraryImageURL(appID int) string { return cdnURL(appID, "library_600x900.jpg") }

// BackgroundImageURL is the store page background
func BackgroundImageURL(appID int) string { return cdnURL(appID, "page_bg_generated_v6b.jpg") }

// StorePageURL links to the title's store page
func StorePageURL(appID int) string {
	return fmt.Sprintf("https://store.steampowered.com/app/%d/", appID)
}
