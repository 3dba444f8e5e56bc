/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package linkeddata

// Inline contexts so that DID documents and credentials can be digested offline.
// A fresh value is returned on every call; callers may extend it.

// DIDDocumentContext returns the expansion context for DID documents.
func DIDDocumentContext() []interface{} {
	return []interface{}{
		map[string]interface{}{
			"id":     "@id",
			"type":   "@type",
			"dc":     "http://purl.org/dc/terms/",
			"rdfs":   "http://www.w3.org/2000/01/rdf-schema#",
			"schema": "http://schema.org/",
			"sec":    "https://w3id.org/security#",
			"didv":   "https://w3id.org/did#",
			"xsd":    "http://www.w3.org/2001/XMLSchema#",

			"EcdsaKoblitzSignature2016":            "sec:EcdsaKoblitzSignature2016",
			"Secp256k1VerificationKey2018":         "sec:Secp256k1VerificationKey2018",
			"Secp256k1SignatureAuthentication2018": "sec:Secp256k1SignatureAuthentication2018",
			"PublicProfile":                        "didv:PublicProfile",

			"authentication":  "sec:authenticationMethod",
			"controller":      map[string]interface{}{"@id": "sec:controller", "@type": "@id"},
			"created":         map[string]interface{}{"@id": "dc:created", "@type": "xsd:dateTime"},
			"creator":         map[string]interface{}{"@id": "dc:creator", "@type": "@id"},
			"description":     "schema:description",
			"expires":         map[string]interface{}{"@id": "sec:expiration", "@type": "xsd:dateTime"},
			"name":            "schema:name",
			"nonce":           "sec:nonce",
			"owner":           map[string]interface{}{"@id": "sec:owner", "@type": "@id"},
			"proof":           "sec:proof",
			"publicKey":       map[string]interface{}{"@id": "sec:publicKey", "@type": "@id", "@container": "@set"},
			"publicKeyHex":    "sec:publicKeyHex",
			"service":         map[string]interface{}{"@id": "didv:service", "@type": "@id", "@container": "@set"},
			"serviceEndpoint": map[string]interface{}{"@id": "didv:serviceEndpoint", "@type": "@id"},
			"signatureValue":  "sec:signatureValue",
			"updated":         map[string]interface{}{"@id": "didv:updated", "@type": "xsd:dateTime"},
		},
	}
}

// CredentialContext returns the base expansion context for credentials. Claim-specific terms
// are appended by the credential type.
func CredentialContext() []interface{} {
	return []interface{}{
		map[string]interface{}{
			"id":     "@id",
			"type":   "@type",
			"cred":   "https://w3id.org/credentials#",
			"schema": "http://schema.org/",
			"dc":     "http://purl.org/dc/terms/",
			"xsd":    "http://www.w3.org/2001/XMLSchema#",
			"sec":    "https://w3id.org/security#",

			"Credential":                "cred:Credential",
			"EcdsaKoblitzSignature2016": "sec:EcdsaKoblitzSignature2016",

			"issuer":         map[string]interface{}{"@id": "cred:issuer", "@type": "@id"},
			"issued":         map[string]interface{}{"@id": "cred:issued", "@type": "xsd:dateTime"},
			"claim":          map[string]interface{}{"@id": "cred:claim", "@type": "@id"},
			"credential":     map[string]interface{}{"@id": "cred:credential", "@type": "@id"},
			"expires":        map[string]interface{}{"@id": "sec:expiration", "@type": "xsd:dateTime"},
			"proof":          map[string]interface{}{"@id": "sec:proof", "@type": "@id"},
			"created":        map[string]interface{}{"@id": "dc:created", "@type": "xsd:dateTime"},
			"creator":        map[string]interface{}{"@id": "dc:creator", "@type": "@id"},
			"domain":         "sec:domain",
			"name":           "schema:name",
			"nonce":          "sec:nonce",
			"signatureValue": "sec:signatureValue",
		},
	}
}
