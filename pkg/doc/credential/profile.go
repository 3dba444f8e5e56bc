/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package credential

// PublicProfileType marks credentials that carry an identity's public profile.
const PublicProfileType = "PublicProfileCredential"

// PublicProfile returns the metadata of public profile credentials. The claim may hold a name,
// a description, an image and a url.
func PublicProfile() Metadata {
	return Metadata{
		Type: []string{PublicProfileType},
		Name: "Public Profile",
		Context: []interface{}{
			map[string]interface{}{
				PublicProfileType: "https://identity.jolocom.com/terms/PublicProfileCredential",
				"about":           "schema:about",
				"description":     "schema:description",
				"image":           "schema:image",
				"url":             "schema:url",
			},
		},
	}
}
