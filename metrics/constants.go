package metrics

const (
	// MeterName is the instrumentation scope used by this module
	MeterName = "iotauth/distkey"

	DistKeyPrefix = "distkey_"

	// Cipher metrics
	EncryptLatency  = DistKeyPrefix + "encrypt_latency"
	EncryptRequests = DistKeyPrefix + "encrypt_requests"
	EncryptErrors   = DistKeyPrefix + "encrypt_errors"
	DecryptLatency  = DistKeyPrefix + "decrypt_latency"
	DecryptRequests = DistKeyPrefix + "decrypt_requests"
	DecryptErrors   = DistKeyPrefix + "decrypt_errors"

	// Materials manager get metrics
	MaterialsManagerGetLatency  = DistKeyPrefix + "materials_manager_get_latency"
	MaterialsManagerGetRequests = DistKeyPrefix + "materials_manager_get_requests"
	MaterialsManagerGetErrors   = DistKeyPrefix + "materials_manager_get_errors"
	MaterialsManagerGetSuccess  = DistKeyPrefix + "materials_manager_get_success"

	// Materials manager decrypt metrics
	MaterialsManagerDecryptLatency  = DistKeyPrefix + "materials_manager_decrypt_latency"
	MaterialsManagerDecryptRequests = DistKeyPrefix + "materials_manager_decrypt_requests"
	MaterialsManagerDecryptErrors   = DistKeyPrefix + "materials_manager_decrypt_errors"
	MaterialsManagerDecryptSuccess  = DistKeyPrefix + "materials_manager_decrypt_success"

	// Issued key metrics
	KeysIssued = DistKeyPrefix + "keys_issued"
)
